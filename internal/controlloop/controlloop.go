// Package controlloop composes the other components into the agent's
// continuous main loop.
package controlloop

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"barnagent/internal/channel"
	"barnagent/internal/fswatch"
	"barnagent/internal/metrics"
	"barnagent/internal/shipper"
	"barnagent/internal/transfer"
)

// idleWaitCap is the "1h" in spec.md's "sleep_seconds_or_1h": the
// bound used for the wait-for-new-file call on a healthy-idle round
// when sleep_seconds is 0.
const idleWaitCap = time.Hour

// ListFunc lists a source directory, as internal/lister.List does.
type ListFunc func(dir string) ([]string, error)

// Loop is the continuous control loop.
type Loop struct {
	Selector     channel.Selector
	Lister       ListFunc
	Transferer   transfer.Transferer
	Shipper      *shipper.Shipper
	Watcher      fswatch.Watcher
	Metrics      metrics.Client
	SleepSeconds int
	Log          *logrus.Entry
}

func (l *Loop) log() *logrus.Entry {
	if l.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return l.Log
}

// Run executes rounds until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.runRound(ctx)
	}
}

// runRound executes exactly one iteration of the sequence in spec.md
// §4.8.
func (l *Loop) runRound(ctx context.Context) {
	round := uuid.New()
	log := l.log().WithField("round", round.String())

	ch := l.Selector.Pick()
	l.Selector.SendMetrics(l.Metrics)

	listing, err := l.Lister(ch.SourceDir)
	if err != nil {
		log.WithError(err).Error("failed to list source directory")
		metrics.EmitRound(l.Metrics, map[string]float64{"FailedToGetSyncList": 1})
		l.sleep(ctx)
		return
	}

	probe := l.Transferer.Probe(ctx, ch.SourceDir, listing, ch.TargetURI)
	if probe.Err != nil {
		log.WithError(probe.Err).Error("probe for missing-on-target files failed")
		metrics.EmitRound(l.Metrics, map[string]float64{"FailedToGetSyncList": 1})
		l.sleep(ctx)
		return
	}

	relist := func() ([]string, error) { return l.Lister(ch.SourceDir) }
	outcome, observed, shipErr := l.Shipper.Ship(ctx, ch, listing, probe.Missing, relist)
	metrics.EmitRound(l.Metrics, observed)

	if errors.Is(shipErr, shipper.ErrShipAllFailed) {
		log.Warn("round had candidates but shipped none, backing off without heartbeat")
		l.sleep(ctx)
		return
	}

	if outcome.NumShipped > 0 {
		log.WithField("num_shipped", outcome.NumShipped).Info("round shipped files")
		l.sleep(ctx)
		l.Selector.Heartbeat()
		return
	}

	// No candidates this round: healthy idle. Wait for the next file
	// rather than busy-polling, then heartbeat.
	l.Watcher.WaitForNewFile(ctx, ch.SourceDir, l.waitTimeout())
	l.Selector.Heartbeat()
}

func (l *Loop) sleep(ctx context.Context) {
	if l.SleepSeconds <= 0 {
		return
	}
	timer := time.NewTimer(time.Duration(l.SleepSeconds) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (l *Loop) waitTimeout() time.Duration {
	if l.SleepSeconds > 0 {
		return time.Duration(l.SleepSeconds) * time.Second
	}
	return idleWaitCap
}
