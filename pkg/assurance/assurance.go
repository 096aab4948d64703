// Package assurance computes the session assurance state both route guard
// variants share. The computation is pure: its only inputs are the session,
// the enrolled second factors, and the locally recorded "just passed" flag.
package assurance

import (
	"github.com/contractanalyser/authbridge/pkg/idp"
)

// Level is the derived session assurance state.
type Level int

const (
	// Unknown means the inputs are not resolved yet (no session).
	Unknown Level = iota
	// Insufficient means a verified second factor exists and has not been
	// satisfied by this session.
	Insufficient
	// Sufficient means either no second factor is enrolled, or it has been
	// satisfied.
	Sufficient
)

func (l Level) String() string {
	switch l {
	case Insufficient:
		return "insufficient"
	case Sufficient:
		return "sufficient"
	default:
		return "unknown"
	}
}

// Result carries the computed level plus which input decided it, so callers
// can tell a flag-driven admit from a provider-attested one.
type Result struct {
	Level Level
	// ByFlag is true when the level is Sufficient only because of the
	// just-passed flag. The guard uses this to schedule clearing the flag.
	ByFlag bool
}

// Evaluate computes the assurance level for a session.
//
// Rules, in order:
//  1. nil session: Unknown. Callers must have redirected to login already.
//  2. no verified TOTP factor enrolled: Sufficient, flag ignored.
//  3. session already attests the second level: Sufficient.
//  4. just-passed flag set: Sufficient, ByFlag.
//  5. otherwise: Insufficient.
func Evaluate(session *idp.Session, factors []idp.SecondFactor, justPassed bool) Result {
	if session == nil {
		return Result{Level: Unknown}
	}

	if !hasVerifiedTOTP(factors) {
		return Result{Level: Sufficient}
	}
	if session.AssuranceLevel == idp.AssuranceLevelSecond {
		return Result{Level: Sufficient}
	}
	if justPassed {
		return Result{Level: Sufficient, ByFlag: true}
	}
	return Result{Level: Insufficient}
}

func hasVerifiedTOTP(factors []idp.SecondFactor) bool {
	for _, f := range factors {
		if f.Type == idp.FactorTypeTOTP && f.Verified() {
			return true
		}
	}
	return false
}

// FirstVerifiedTOTP returns the factor the challenge flow should target, or
// false when none is enrolled.
func FirstVerifiedTOTP(factors []idp.SecondFactor) (idp.SecondFactor, bool) {
	for _, f := range factors {
		if f.Type == idp.FactorTypeTOTP && f.Verified() {
			return f, true
		}
	}
	return idp.SecondFactor{}, false
}
