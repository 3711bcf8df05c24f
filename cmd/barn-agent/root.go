package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"barnagent/internal/channel"
	"barnagent/internal/config"
	"barnagent/internal/controlloop"
	"barnagent/internal/fswatch"
	"barnagent/internal/hostutil"
	"barnagent/internal/lister"
	"barnagent/internal/metrics"
	"barnagent/internal/shipper"
	"barnagent/internal/transfer"
)

// cliFlags mirrors spec.md §6's CLI surface field-for-field; its
// values are validated and lowered into a config.Config before the
// control loop is built.
type cliFlags struct {
	targetAddr                 string
	backupAddr                 string
	source                     string
	serviceName                string
	category                   string
	monitorPort                int
	secondsBeforeFailover      int
	sleepSeconds               int
	remoteRsyncNamespace       string
	remoteRsyncNamespaceBackup string
	monitorMode                bool
}

func newRootCommand() *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:           "barn-agent",
		Short:         "Ship rotated log files to one or two remote rsync sinks",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.monitorMode {
				return runMonitor(flags)
			}
			return runAgent(flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.targetAddr, "target-addr", "", "primary rsync daemon address (host:port)")
	f.StringVar(&flags.backupAddr, "backup-addr", "", "secondary rsync daemon address (host:port)")
	f.StringVar(&flags.source, "source", "", "local directory to ship log files from")
	f.StringVar(&flags.serviceName, "service-name", "", "service name component of the target URI")
	f.StringVar(&flags.category, "category", "", "log category component of the target URI")
	f.IntVar(&flags.monitorPort, "monitor_port", 0, "loopback UDP port for telemetry (0 disables)")
	f.IntVar(&flags.secondsBeforeFailover, "seconds_before_failover", 0, "seconds without progress before failing over (0 disables, else must be > 60)")
	f.IntVar(&flags.sleepSeconds, "sleep_seconds", 5, "pacing sleep between rounds")
	f.StringVar(&flags.remoteRsyncNamespace, "remote_rsync_namespace", "barn_logs", "rsync module namespace on the primary sink")
	f.StringVar(&flags.remoteRsyncNamespaceBackup, "remote_rsync_namespace_backup", "barn_backup_logs", "rsync module namespace on the secondary sink")
	f.BoolVar(&flags.monitorMode, "monitor_mode", false, "run as the monitor-side metrics receiver instead of the shipping agent")

	return cmd
}

func (flags cliFlags) toConfig() config.Config {
	return config.Config{
		PrimaryAddr:           flags.targetAddr,
		SecondaryAddr:         flags.backupAddr,
		SourceDir:             flags.source,
		ServiceName:           flags.serviceName,
		Category:              flags.category,
		MonitorPort:           flags.monitorPort,
		SecondsBeforeFailover: flags.secondsBeforeFailover,
		SleepSeconds:          flags.sleepSeconds,
		PrimaryNamespace:      flags.remoteRsyncNamespace,
		SecondaryNamespace:    flags.remoteRsyncNamespaceBackup,
	}
}

func runAgent(flags cliFlags) error {
	cfg := flags.toConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logrus.NewEntry(log).WithFields(logrus.Fields{
		"service":  cfg.ServiceName,
		"category": cfg.Category,
	})

	fqdn := hostutil.FQDN()
	primary := channel.Channel{
		SourceDir: cfg.SourceDir,
		TargetURI: config.TargetURI(cfg.PrimaryAddr, cfg.PrimaryNamespace, cfg.ServiceName, cfg.Category, fqdn),
	}

	var selector channel.Selector
	if cfg.FailoverEnabled() {
		secondary := channel.Channel{
			SourceDir: cfg.SourceDir,
			TargetURI: config.TargetURI(cfg.SecondaryAddr, cfg.SecondaryNamespace, cfg.ServiceName, cfg.Category, fqdn),
		}
		fo, err := channel.NewFailover(primary, secondary, cfg.SecondsBeforeFailover, entry.WithField("component", "channel_selector"))
		if err != nil {
			return err
		}
		selector = fo
	} else {
		selector = channel.NewSingle(primary)
	}

	transferer := &transfer.RsyncTransferer{}
	loop := &controlloop.Loop{
		Selector:     selector,
		Lister:       lister.List,
		Transferer:   transferer,
		Shipper:      &shipper.Shipper{Transferer: transferer, Log: entry.WithField("component", "shipper")},
		Watcher:      &fswatch.FSNotifyWatcher{Log: entry.WithField("component", "fswatch")},
		Metrics:      metrics.New(cfg.MonitorPort, entry.WithField("component", "metrics")),
		SleepSeconds: cfg.SleepSeconds,
		Log:          entry,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	go func() {
		<-sigCh
		entry.Info("shutdown signal received")
		cancel()
	}()

	entry.WithField("target", primary.TargetURI).Info("barn-agent starting")
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
