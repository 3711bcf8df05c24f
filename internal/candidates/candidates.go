// Package candidates implements the tail-intersection rule that decides
// which locally present log files still need to be shipped.
package candidates

// Select computes the ordered subsequence of missing that the current
// round should ship, given the pre-round local directory listing
// (local) and the probe's missing-on-target set (missing). Both
// sequences must already be sorted ascending.
//
// The rule: walk local and missing from the end, in lockstep; while the
// last unvisited element of each is equal, include it; stop at the
// first mismatch. The result is the longest common suffix of the two
// sequences, which isolates files newer than the newest file the sink
// already holds — files older than that are presumed intentionally
// retired by the sink's retention policy and must never be re-shipped.
//
// fullDirectoryShip reports whether the whole local directory is being
// shipped (len(result) == len(local) && len(local) >= 2), the signal
// the shipper surfaces as the FullDirectoryShip metric.
func Select(local, missing []string) (result []string, fullDirectoryShip bool) {
	if len(local) == 0 || len(missing) == 0 {
		return nil, false
	}

	i, j := len(local)-1, len(missing)-1
	n := 0
	for i >= 0 && j >= 0 && local[i] == missing[j] {
		n++
		i--
		j--
	}
	if n == 0 {
		return nil, false
	}

	result = make([]string, n)
	copy(result, local[len(local)-n:])

	fullDirectoryShip = n == len(local) && len(local) >= 2
	return result, fullDirectoryShip
}

// CountMissing returns the number of elements of a that are absent from
// b, where both a and b are sorted ascending. Used after a round to
// detect how many of the round's candidates rotated out of the source
// directory while the round was shipping.
func CountMissing(a, b []string) int {
	i, j, missing := 0, 0, 0
	for i < len(a) {
		for j < len(b) && b[j] < a[i] {
			j++
		}
		if j >= len(b) || b[j] != a[i] {
			missing++
		} else {
			j++
		}
		i++
	}
	return missing
}
