// Package lister lists the source directory for shippable log files.
package lister

import (
	"fmt"
	"os"
	"sort"
)

// StopSentinel is the literal filename that, when present in the
// source directory, suppresses all shipping until it is removed.
const StopSentinel = "STOP_SHIPPING"

// List enumerates the entries of dir (non-recursive, names only). If
// any entry is named StopSentinel, List returns an empty, nil-error
// result — the emergency kill switch. Otherwise it returns the entries
// whose name starts with '@', sorted ascending.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list log directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name == StopSentinel {
			return nil, nil
		}
		if len(name) > 0 && name[0] == '@' {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}
