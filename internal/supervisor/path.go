// Package supervisor is the link-supervisor state watcher (C3): it
// tracks the per-link AdministrativeState the external network
// supervisor reports, parses the supervisor's object-path encoding to
// recover a kernel ifindex, and at startup enumerates every link the
// supervisor already knows about so the registry converges even if the
// daemon started after the supervisor did.
package supervisor

import (
	"strconv"
	"strings"
)

// linkPathMarker is the path segment that precedes the encoded
// ifindex, per spec.md §4.4: object paths look like
// ".../link/_3<decimal-ifidx>".
const linkPathMarker = "/link/_3"

// ParseLinkPath extracts the kernel ifindex encoded in a supervisor
// link object path. Malformed paths return ok=false; callers must log
// and continue rather than treat this as fatal (spec.md §4.4).
func ParseLinkPath(path string) (ifidx uint32, ok bool) {
	i := strings.Index(path, linkPathMarker)
	if i < 0 {
		return 0, false
	}
	suffix := path[i+len(linkPathMarker):]
	if suffix == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(suffix, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
