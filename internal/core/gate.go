package core

import "time"

// Authorize decides whether the account may perform mutating
// operations at the given instant. The admin role bypasses all status
// gating. A trial or subscription that has lapsed demotes a.Status to
// expired in place; callers that loaded the account from storage
// persist the change (the status is time-driven, so it is evaluated
// lazily here rather than by a background job). The returned bool
// reports whether the status was demoted.
func Authorize(a *Account, now time.Time) (bool, error) {
	if a.Role == RoleAdmin {
		return false, nil
	}
	switch a.Status {
	case StatusBlocked:
		return false, Forbidden(CodeAccountBlocked, "account is blocked, contact the administrator")
	case StatusActive:
		if a.SubscriptionEnd != nil && now.After(*a.SubscriptionEnd) {
			a.Status = StatusExpired
			return true, Forbidden(CodeSubscriptionExpired, "subscription has expired")
		}
		return false, nil
	case StatusTrial:
		if a.TrialEndsAt != nil && now.After(*a.TrialEndsAt) {
			a.Status = StatusExpired
			return true, Forbidden(CodeTrialExpired, "trial period has ended")
		}
		return false, nil
	case StatusExpired:
		return false, Forbidden(CodeSubscriptionExpired, "subscription has expired")
	}
	return false, nil
}

// RestoredStatus computes the status an account returns to when
// unblocked, from its subscription and trial windows at the given
// instant.
func RestoredStatus(a *Account, now time.Time) AccountStatus {
	if a.SubscriptionEnd != nil && now.Before(*a.SubscriptionEnd) {
		return StatusActive
	}
	if a.TrialEndsAt != nil && now.Before(*a.TrialEndsAt) {
		return StatusTrial
	}
	return StatusExpired
}
