package shipper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"barnagent/internal/channel"
	"barnagent/internal/transfer"
)

// fakeTransferer ships files whose name is NOT in failNames; it never
// probes (Probe is unused by the shipper).
type fakeTransferer struct {
	failNames map[string]bool
}

func (f *fakeTransferer) Probe(ctx context.Context, dir string, local []string, target string) transfer.ProbeResult {
	return transfer.ProbeResult{}
}

func (f *fakeTransferer) ShipOne(ctx context.Context, filePath, target string) bool {
	for name := range f.failNames {
		if strings.HasSuffix(filePath, name) {
			return false
		}
	}
	return true
}

func testChannel(dir string) channel.Channel {
	return channel.Channel{SourceDir: dir, TargetURI: "rsync://x/y/"}
}

func TestShipNoCandidates(t *testing.T) {
	s := &Shipper{Transferer: &fakeTransferer{}}
	outcome, observed, err := s.Ship(context.Background(), testChannel(t.TempDir()), nil, nil, func() ([]string, error) { return nil, nil })
	if err != nil {
		t.Fatalf("Ship() error = %v", err)
	}
	if outcome != (Outcome{}) {
		t.Errorf("Ship() outcome = %+v, want zero", outcome)
	}
	if observed["FilesToShip"] != 0 || observed["NumFilesShipped"] != 0 {
		t.Errorf("Ship() observed = %v, want FilesToShip=0 NumFilesShipped=0", observed)
	}
}

func TestShipAllSucceed(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"@t1", "@t2", "@t3"} {
		writeFile(t, dir, f)
	}
	s := &Shipper{Transferer: &fakeTransferer{}}
	local := []string{"@t1", "@t2", "@t3"}
	missing := []string{"@t1", "@t2", "@t3"}

	outcome, observed, err := s.Ship(context.Background(), testChannel(dir), local, missing, func() ([]string, error) { return local, nil })
	if err != nil {
		t.Fatalf("Ship() error = %v", err)
	}
	if outcome.NumShipped != 3 {
		t.Errorf("NumShipped = %d, want 3", outcome.NumShipped)
	}
	if observed["FullDirectoryShip"] != 1 {
		t.Errorf("FullDirectoryShip = %v, want 1", observed["FullDirectoryShip"])
	}
}

func TestShipPartialWithLostFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "@t2") // @t1 intentionally absent: it "rotated away"

	tr := &fakeTransferer{failNames: map[string]bool{"@t1": true}}
	s := &Shipper{Transferer: tr}
	local := []string{"@t1", "@t2"}
	missing := []string{"@t1", "@t2"}

	outcome, observed, err := s.Ship(context.Background(), testChannel(dir), local, missing, func() ([]string, error) { return []string{"@t2"}, nil })
	if err != nil {
		t.Fatalf("Ship() error = %v", err)
	}
	if outcome.NumLostDuringShip != 1 {
		t.Errorf("NumLostDuringShip = %d, want 1", outcome.NumLostDuringShip)
	}
	if outcome.NumShipped != 1 {
		t.Errorf("NumShipped = %d, want 1", outcome.NumShipped)
	}
	if observed["LostDuringShip"] != 1 {
		t.Errorf("observed LostDuringShip = %v, want 1", observed["LostDuringShip"])
	}
}

func TestShipPartialWithStillPresentFileHalts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "@t0")
	writeFile(t, dir, "@t1") // still present, but its ship attempt fails

	tr := &fakeTransferer{failNames: map[string]bool{"@t1": true}}
	s := &Shipper{Transferer: tr}
	local := []string{"@t0", "@t1"}
	missing := []string{"@t0", "@t1"}

	outcome, observed, err := s.Ship(context.Background(), testChannel(dir), local, missing, func() ([]string, error) { return local, nil })
	if err != nil {
		t.Fatalf("Ship() error = %v, want nil (progress was made)", err)
	}
	if outcome.NumShipped != 1 {
		t.Errorf("NumShipped = %d, want 1", outcome.NumShipped)
	}
	if outcome.NumLostDuringShip != 0 || outcome.NumRotatedDuringShip != 0 {
		t.Errorf("outcome = %+v, want no loss/rotation (file still present)", outcome)
	}
	if observed["NumFilesShipped"] != 1 {
		t.Errorf("observed NumFilesShipped = %v, want 1", observed["NumFilesShipped"])
	}
}

func TestShipAllFailedReturnsSentinelError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "@t1")

	tr := &fakeTransferer{failNames: map[string]bool{"@t1": true}}
	s := &Shipper{Transferer: tr}
	local := []string{"@t1"}

	outcome, _, err := s.Ship(context.Background(), testChannel(dir), local, local, func() ([]string, error) { return local, nil })
	if !errors.Is(err, ErrShipAllFailed) {
		t.Fatalf("Ship() error = %v, want ErrShipAllFailed", err)
	}
	if outcome.NumShipped != 0 {
		t.Errorf("NumShipped = %d, want 0", outcome.NumShipped)
	}
}

func TestShipRotationDuringShipDoesNotDoubleCountLost(t *testing.T) {
	dir := t.TempDir()
	// Nothing on disk: both files vanished before the ship loop even
	// starts (ship_one will fail for both, and both are absent).
	tr := &fakeTransferer{failNames: map[string]bool{"@t1": true, "@t2": true}}
	s := &Shipper{Transferer: tr}
	local := []string{"@t1", "@t2"}

	outcome, observed, err := s.Ship(context.Background(), testChannel(dir), local, local, func() ([]string, error) { return nil, nil })
	if !errors.Is(err, ErrShipAllFailed) {
		t.Fatalf("Ship() error = %v, want ErrShipAllFailed", err)
	}
	if outcome.NumLostDuringShip != 2 {
		t.Errorf("NumLostDuringShip = %d, want 2", outcome.NumLostDuringShip)
	}
	if outcome.NumRotatedDuringShip != 0 {
		t.Errorf("NumRotatedDuringShip = %d, want 0 (no double count with lost)", outcome.NumRotatedDuringShip)
	}
	if observed["RotatedDuringShip"] != 0 {
		t.Errorf("observed RotatedDuringShip = %v, want absent/0", observed["RotatedDuringShip"])
	}
}

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
		t.Fatalf("writeFile(%s): %v", name, err)
	}
}
