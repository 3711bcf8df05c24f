package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"barnagent/internal/metrics"
)

// runMonitor runs the receiving side of the telemetry channel: it
// listens on the configured monitor_port and logs every decoded metric
// rather than forwarding it anywhere, since a downstream telemetry
// sink is out of scope here.
func runMonitor(flags cliFlags) error {
	if flags.monitorPort == 0 {
		return fmt.Errorf("--monitor_port must be set to a nonzero port in --monitor_mode")
	}

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logrus.NewEntry(log).WithField("component", "monitor")

	entry.WithField("port", flags.monitorPort).Info("barn-agent monitor listening")
	return metrics.Serve(flags.monitorPort, func(key string, value float64) {
		entry.WithFields(logrus.Fields{"key": key, "value": value}).Info("metric received")
	}, entry)
}
