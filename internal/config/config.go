// Package config holds the values-only configuration spec.md treats as
// parsed by an external collaborator (the CLI flag parser in
// cmd/barn-agent); this package owns validation and target-URI
// construction, which are not thin shells.
package config

import "fmt"

// Config is the fully parsed, validated configuration for one agent
// instance.
type Config struct {
	PrimaryAddr           string
	SecondaryAddr         string
	SourceDir             string
	ServiceName           string
	Category              string
	MonitorPort           int
	SecondsBeforeFailover int
	SleepSeconds          int
	PrimaryNamespace      string
	SecondaryNamespace    string
}

// Validate enforces the invariants spec.md §6 assigns to the CLI
// surface: malformed configuration is a fatal startup error (exit 1),
// never a runtime one.
func (c Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("--source is required")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("--service-name is required")
	}
	if c.Category == "" {
		return fmt.Errorf("--category is required")
	}
	if c.PrimaryAddr == "" {
		return fmt.Errorf("--target-addr is required")
	}
	if c.SleepSeconds < 0 {
		return fmt.Errorf("--sleep_seconds must be >= 0, got %d", c.SleepSeconds)
	}
	if c.MonitorPort < 0 {
		return fmt.Errorf("--monitor_port must be >= 0, got %d", c.MonitorPort)
	}
	if c.SecondsBeforeFailover != 0 && c.SecondsBeforeFailover <= 60 {
		return fmt.Errorf("--seconds_before_failover must be 0 or > 60, got %d", c.SecondsBeforeFailover)
	}
	if c.SecondsBeforeFailover != 0 && c.SecondaryAddr == "" {
		return fmt.Errorf("--backup-addr is required when --seconds_before_failover is set")
	}
	return nil
}

// FailoverEnabled reports whether the configuration requests a
// Failover selector rather than a Single one.
func (c Config) FailoverEnabled() bool {
	return c.SecondsBeforeFailover != 0
}

// TargetURI builds the bit-exact rsync target address from spec.md §6:
// rsync://<host:port>/<namespace>/<service>@<category>@<fqdn>/
func TargetURI(addr, namespace, service, category, fqdn string) string {
	return fmt.Sprintf("rsync://%s/%s/%s@%s@%s/", addr, namespace, service, category, fqdn)
}
