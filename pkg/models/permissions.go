package models

import "sort"

// Capability names understood by the handlers.
const (
	PermissionSelect      = "select"
	PermissionInsert      = "insert"
	PermissionUpdate      = "update"
	PermissionDelete      = "delete"
	PermissionCreateTable = "create_table"
	PermissionDropTable   = "drop_table"
)

// KnownPermissions is the full capability vocabulary.
var KnownPermissions = []string{
	PermissionSelect,
	PermissionInsert,
	PermissionUpdate,
	PermissionDelete,
	PermissionCreateTable,
	PermissionDropTable,
}

// PermissionSet maps a capability name to whether it is granted.
type PermissionSet map[string]bool

// DefaultPermissions grants only select.
func DefaultPermissions() PermissionSet {
	return PermissionSet{
		PermissionSelect:      true,
		PermissionInsert:      false,
		PermissionUpdate:      false,
		PermissionDelete:      false,
		PermissionCreateTable: false,
		PermissionDropTable:   false,
	}
}

// NewPermissionSet grants the named capabilities and denies the rest of the vocabulary.
func NewPermissionSet(granted ...string) PermissionSet {
	p := make(PermissionSet, len(KnownPermissions))
	for _, name := range KnownPermissions {
		p[name] = false
	}
	for _, name := range granted {
		p[name] = true
	}
	return p
}

// IsKnownPermission reports whether name is in the capability vocabulary.
func IsKnownPermission(name string) bool {
	for _, known := range KnownPermissions {
		if name == known {
			return true
		}
	}
	return false
}

// Has reports whether the capability is granted. A nil set grants nothing.
func (p PermissionSet) Has(name string) bool {
	return p[name]
}

// Granted returns the granted capability names, sorted.
func (p PermissionSet) Granted() []string {
	out := make([]string, 0, len(p))
	for name, ok := range p {
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
