// Package hostutil caches the agent host's fully qualified name.
//
// This is one of the two legitimate process-wide globals (the other is
// the child-process registry in internal/procmgr): it is resolved once
// at startup and never mutated afterward.
package hostutil

import (
	"net"
	"os"
	"sync"
)

var (
	once sync.Once
	fqdn string
)

// FQDN returns the agent host's fully qualified domain name, resolving
// it on first call and caching the result for the lifetime of the
// process. Falls back to the unqualified hostname if FQDN resolution
// fails.
func FQDN() string {
	once.Do(func() {
		fqdn = resolve()
	})
	return fqdn
}

func resolve() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}

	addrs, err := net.LookupHost(host)
	if err != nil || len(addrs) == 0 {
		return host
	}

	names, err := net.LookupAddr(addrs[0])
	if err != nil || len(names) == 0 {
		return host
	}

	name := names[0]
	if len(name) > 0 && name[len(name)-1] == '.' {
		name = name[:len(name)-1]
	}
	return name
}
