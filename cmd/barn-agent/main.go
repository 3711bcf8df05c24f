// Command barn-agent ships rotated log files to one or two remote
// rsync sinks, with time-based failover between them.
package main

import (
	"fmt"
	"os"

	"barnagent/internal/procmgr"
)

func main() {
	procmgr.ForwardSignals()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
