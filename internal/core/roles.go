package core

// nextRole is the fixed demotion ladder applied to invite-based
// registrations: a new member's role is one step below the inviter's.
// The leaf tier maps to itself.
var nextRole = map[Role]Role{
	RoleAdmin:       RoleFounder,
	RoleFounder:     RoleManager,
	RoleManager:     RoleLeader,
	RoleLeader:      RoleDistributor,
	RoleDistributor: RoleReseller,
	RoleReseller:    RoleReseller,
}

// NextRole returns the tier one step below r. Unknown roles fall to
// the leaf tier.
func NextRole(r Role) Role {
	if next, ok := nextRole[r]; ok {
		return next
	}
	return RoleReseller
}

// Supervisory reports whether r is a non-leaf network tier, i.e. a
// role that can hold downline members.
func (r Role) Supervisory() bool {
	switch r {
	case RoleFounder, RoleManager, RoleLeader, RoleDistributor:
		return true
	}
	return false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := nextRole[r]
	return ok
}
