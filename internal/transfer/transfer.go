// Package transfer wraps the external rsync binary: the only component
// in the agent that invokes it. It classifies rsync's exit status,
// discovers the missing-on-target set via a dry-run, and ships a
// single file at a time.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"barnagent/internal/procmgr"
)

// toolTimeout is the rsync --timeout value, fixed by spec. The agent's
// outer bound on a single invocation is toolTimeout plus 5 seconds.
const toolTimeout = 30 * time.Second

// ErrProtocol marks an rsync exit status of 5 (client/server protocol
// error), the one transient failure mode the Transferer retries
// internally before giving up.
var ErrProtocol = errors.New("rsync protocol error")

// ProbeResult is the outcome of a dry-run: either the sorted
// missing-on-target set, or a non-transient failure reason.
type ProbeResult struct {
	Missing []string
	Err     error
}

// Transferer is the capability contract the rest of the agent depends
// on; RsyncTransferer is the only production implementation, and
// hand-written fakes satisfy it in tests.
type Transferer interface {
	Probe(ctx context.Context, dir string, local []string, target string) ProbeResult
	ShipOne(ctx context.Context, filePath, target string) bool
}

// RsyncTransferer invokes a real rsync binary through procmgr.
type RsyncTransferer struct {
	// BinaryPath defaults to "rsync" when empty.
	BinaryPath string
}

func (t *RsyncTransferer) binary() string {
	if t.BinaryPath == "" {
		return "rsync"
	}
	return t.BinaryPath
}

// Probe runs `rsync --dry-run --times --verbose --timeout=30 <local...>
// <target>` and parses stdout for the missing-on-target set: lines
// whose first character is '@'. If local is empty, it returns an empty
// result without invoking the tool. Exit 5 (protocol error) is retried
// up to 2 additional times before being surfaced as a failure.
func (t *RsyncTransferer) Probe(ctx context.Context, dir string, local []string, target string) ProbeResult {
	if len(local) == 0 {
		return ProbeResult{}
	}

	paths := make([]string, len(local))
	for i, f := range local {
		paths[i] = filepath.Join(dir, f)
	}

	args := append([]string{"--dry-run", "--times", "--verbose", "--timeout=30"}, paths...)
	args = append(args, target)

	var stdout []byte
	err := retry.Do(
		func() error {
			out, runErr := t.run(ctx, args)
			stdout = out
			return runErr
		},
		retry.Attempts(3),
		retry.RetryIf(func(err error) bool { return errors.Is(err, ErrProtocol) }),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return ProbeResult{Err: err}
	}

	missing := parseMissing(stdout)
	sort.Strings(missing)
	return ProbeResult{Missing: missing}
}

// ShipOne runs `rsync --times --verbose --timeout=30 <filePath> <target>`
// and retries up to 2 additional times on protocol error. It returns
// true iff the final attempt exits 0.
func (t *RsyncTransferer) ShipOne(ctx context.Context, filePath, target string) bool {
	args := []string{"--times", "--verbose", "--timeout=30", filePath, target}

	err := retry.Do(
		func() error {
			_, runErr := t.run(ctx, args)
			return runErr
		},
		retry.Attempts(3),
		retry.RetryIf(func(err error) bool { return errors.Is(err, ErrProtocol) }),
		retry.LastErrorOnly(true),
	)
	return err == nil
}

// run spawns one rsync invocation and classifies its exit status per
// the table in spec.md §4.3. Exit 0, 23, and 24 are treated as success
// (nil error); exit 5 returns a wrapped ErrProtocol for the caller's
// retry loop; any other non-zero exit is a terminal failure carrying
// rsync's stderr as the reason.
func (t *RsyncTransferer) run(ctx context.Context, args []string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, toolTimeout+5*time.Second)
	defer cancel()

	h, err := procmgr.Spawn(runCtx, t.binary(), args)
	if err != nil {
		return nil, fmt.Errorf("rsync spawn: %w", err)
	}

	stdout, stderr, waitErr := h.Wait()
	if waitErr == nil {
		return stdout, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return stdout, fmt.Errorf("rsync invocation failed: %w", waitErr)
	}

	switch exitErr.ExitCode() {
	case 23, 24:
		return stdout, nil
	case 5:
		return stdout, fmt.Errorf("%w (exit 5): %s", ErrProtocol, strings.TrimSpace(string(stderr)))
	default:
		return stdout, fmt.Errorf("rsync exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(string(stderr)))
	}
}

func parseMissing(stdout []byte) []string {
	var missing []string
	for _, line := range strings.Split(string(stdout), "\n") {
		if len(line) > 0 && line[0] == '@' {
			missing = append(missing, line)
		}
	}
	return missing
}
