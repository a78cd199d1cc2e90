package netlinkx

import "golang.org/x/sys/unix"

// Flag/state bits the decoder filters on. Named locally (rather than
// referencing unix.* at every call site) so the filtering rules in
// types.go read as domain predicates, not kernel trivia.
const (
	flagDeprecated      = unix.IFA_F_DEPRECATED
	stateNeighPermanent = unix.NUD_PERMANENT
)
