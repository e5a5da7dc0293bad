package policy

import (
	"errors"
	"strings"
)

var (
	ErrReservedName   = errors.New("reserved name")
	ErrDisallowedName = errors.New("disallowed name")
	ErrNameTaken      = errors.New("name taken in this room")
)

// reserved are role-like identifiers clients may not claim.
var reserved = map[string]struct{}{
	"admin":         {},
	"administrator": {},
	"mod":           {},
	"moderator":     {},
	"owner":         {},
	"root":          {},
	"server":        {},
	"system":        {},
}

// denylist entries are rejected as substrings of the lower-cased name.
var denylist = []string{
	"asshole",
	"bitch",
	"cunt",
	"fuck",
	"shit",
}

// Validate checks a proposed display name against the reserved-word set, the
// denylist, and the set of lower-cased names already active in the room.
// Comparison is case-insensitive throughout; uniqueness scope is the room.
func Validate(name string, taken map[string]struct{}) error {
	lower := strings.ToLower(name)

	if _, ok := reserved[lower]; ok {
		return ErrReservedName
	}
	for _, bad := range denylist {
		if strings.Contains(lower, bad) {
			return ErrDisallowedName
		}
	}
	if _, ok := taken[lower]; ok {
		return ErrNameTaken
	}
	return nil
}
