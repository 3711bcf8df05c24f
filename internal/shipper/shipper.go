// Package shipper executes one shipping round: compute candidates,
// ship them in order, and account for partial failure, rotation, and
// loss.
package shipper

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"barnagent/internal/candidates"
	"barnagent/internal/channel"
	"barnagent/internal/transfer"
)

// ErrShipAllFailed is returned when the round had candidates to ship
// but shipped none of them; the control loop treats this as a
// non-fatal backoff signal and does not heartbeat.
var ErrShipAllFailed = errors.New("shipper: round had candidates but shipped none")

// Outcome is the record spec.md calls ShipOutcome.
type Outcome struct {
	NumShipped           int
	NumRotatedDuringShip int
	NumLostDuringShip    int
}

// ListFunc re-lists the source directory; Shipper uses it to detect
// rotation after the round's ship attempts.
type ListFunc func() ([]string, error)

// Shipper ties the candidate selector and a Transferer together into
// one round.
type Shipper struct {
	Transferer transfer.Transferer
	Log        *logrus.Entry
}

func (s *Shipper) log() *logrus.Entry {
	if s.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Log
}

// Ship runs one round against ch, given the pre-round local listing and
// the probe's missing-on-target set. relist is called once, after the
// ship attempts and only if some candidate was not recorded as lost,
// to detect files that rotated away mid-round. The returned observed map holds the metric
// observations this round produced (see internal/metrics.EmitRound for
// how absent keys are zero-filled); a non-nil error is ErrShipAllFailed
// when every candidate ship attempt failed.
func (s *Shipper) Ship(ctx context.Context, ch channel.Channel, preRoundLocal, missingOnTarget []string, relist ListFunc) (Outcome, map[string]float64, error) {
	cands, fullDirectoryShip := candidates.Select(preRoundLocal, missingOnTarget)

	observed := map[string]float64{
		"FilesToShip": float64(len(cands)),
	}
	if fullDirectoryShip {
		observed["FullDirectoryShip"] = 1
	}

	if len(cands) == 0 {
		observed["NumFilesShipped"] = 0
		return Outcome{}, observed, nil
	}

	var outcome Outcome
	processed := 0
	notLost := make([]string, 0, len(cands))
	for _, f := range cands {
		path := filepath.Join(ch.SourceDir, f)

		if s.Transferer.ShipOne(ctx, path, ch.TargetURI) {
			outcome.NumShipped++
			processed++
			notLost = append(notLost, f)
			continue
		}

		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			outcome.NumLostDuringShip++
			processed++
			s.log().WithField("file", f).Warn("file rotated away mid-ship, counting as lost")
			continue
		}

		// Still present locally: a transient failure. Halt the round
		// so the next one retries from this file onward.
		s.log().WithField("file", f).Debug("transient ship failure, will retry next round")
		break
	}

	// Every candidate not already counted as lost is checked against the
	// post-round listing, shipped ones included.
	notLost = append(notLost, cands[processed:]...)
	if len(notLost) > 0 {
		if after, err := relist(); err == nil {
			outcome.NumRotatedDuringShip = candidates.CountMissing(notLost, after)
		} else {
			s.log().WithError(err).Warn("failed to re-list source directory for rotation accounting")
		}
	}

	observed["NumFilesShipped"] = float64(outcome.NumShipped)
	if outcome.NumLostDuringShip > 0 {
		observed["LostDuringShip"] = float64(outcome.NumLostDuringShip)
	}
	if outcome.NumRotatedDuringShip > 0 {
		observed["RotatedDuringShip"] = float64(outcome.NumRotatedDuringShip)
	}

	if outcome.NumShipped == 0 {
		return outcome, observed, ErrShipAllFailed
	}
	return outcome, observed, nil
}
