// Package channel implements the failover channel selector: a
// time-based switch between a primary and a secondary destination,
// driven by heartbeat-reported liveness and automatic failback.
package channel

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Channel is an immutable (source directory, target URI) pair.
type Channel struct {
	SourceDir string
	TargetURI string
}

// Sink receives metric observations emitted by a Selector.
type Sink interface {
	Send(key string, value float64)
}

// Selector is the capability contract the control loop depends on.
// Single and Failover are the two production implementations.
type Selector interface {
	// Pick returns the channel to use for the current round, advancing
	// internal failover state as a side effect.
	Pick() Channel
	// Heartbeat records the current moment as the most recent healthy
	// progress on the active channel.
	Heartbeat()
	// SendMetrics reports selector-level liveness metrics.
	SendMetrics(sink Sink)
}

// Single always returns the same channel; heartbeat and metrics are
// no-ops.
type Single struct {
	channel Channel
}

// NewSingle returns a Selector with no failover behavior.
func NewSingle(ch Channel) *Single { return &Single{channel: ch} }

func (s *Single) Pick() Channel    { return s.channel }
func (s *Single) Heartbeat()       {}
func (s *Single) SendMetrics(Sink) {}

const (
	activePrimary   = "primary"
	activeSecondary = "secondary"
)

// Failover alternates between primary and secondary based on elapsed
// time since the last heartbeat on the active channel.
type Failover struct {
	primary, secondary Channel
	failoverSeconds    float64
	active             string
	lastHeartbeat      time.Time

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time

	log *logrus.Entry
}

// NewFailover constructs a Failover selector seeded at construction
// time on the primary channel. failoverSeconds must be greater than 60
// (spec.md invariant); a request to disable failover belongs at the
// configuration layer, which should construct a Single instead.
func NewFailover(primary, secondary Channel, failoverSeconds int, log *logrus.Entry) (*Failover, error) {
	if failoverSeconds <= 60 {
		return nil, fmt.Errorf("failover_seconds must be > 60, got %d", failoverSeconds)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Failover{
		primary:         primary,
		secondary:       secondary,
		failoverSeconds: float64(failoverSeconds),
		active:          activePrimary,
		lastHeartbeat:   time.Now(),
		now:             time.Now,
		log:             log,
	}, nil
}

// Pick returns the currently active channel, flipping to the other
// side first if the active side has gone failoverSeconds without a
// heartbeat. Idempotent within any interval shorter than
// failoverSeconds: repeated calls with no elapsed time make no
// transition.
func (f *Failover) Pick() Channel {
	delta := f.now().Sub(f.lastHeartbeat).Seconds()

	switch f.active {
	case activePrimary:
		if delta >= f.failoverSeconds {
			f.log.WithField("since_heartbeat_s", delta).Error("primary channel unresponsive, failing over to secondary")
			f.active = activeSecondary
			f.lastHeartbeat = f.now()
		}
	case activeSecondary:
		if delta >= f.failoverSeconds {
			f.log.WithField("since_heartbeat_s", delta).Warn("failover window elapsed, giving primary channel another chance")
			f.active = activePrimary
			f.lastHeartbeat = f.now()
		}
	}

	if f.active == activePrimary {
		return f.primary
	}
	return f.secondary
}

// Heartbeat records progress on the active channel, but only while on
// primary: on secondary, last-heartbeat tracks time since the flip so
// the selector oscillates back to primary after failoverSeconds
// regardless of whether secondary made progress.
func (f *Failover) Heartbeat() {
	if f.active == activePrimary {
		f.lastHeartbeat = f.now()
	}
}

// SendMetrics emits TimeSinceSuccess and, while on secondary,
// FailedOverAgents = 1.
func (f *Failover) SendMetrics(sink Sink) {
	sink.Send("TimeSinceSuccess", f.now().Sub(f.lastHeartbeat).Seconds())
	if f.active == activeSecondary {
		sink.Send("FailedOverAgents", 1)
	}
}
