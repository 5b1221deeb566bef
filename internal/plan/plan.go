// Package plan defines the plan tiers and the conversion limit check.
//
// Go Pattern: Business rules live in a dependency-free package so both
// sides of the wire can use them. The server evaluates against its
// authoritative counters; the client evaluates against cached or local
// counters when the server is unreachable. One function, one truth.
package plan

// Tier names a subscription level. Guests are a tier too — they just
// have no server record.
type Tier string

const (
	TierGuest      Tier = "guest"
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Unlimited is the sentinel meaning "no conversion cap".
const Unlimited = -1

// Byte sizes for the per-tier file caps.
const (
	GuestMaxFileSize      = 5 * 1024 * 1024   // 5MB
	FreeMaxFileSize       = 5 * 1024 * 1024   // 5MB
	ProMaxFileSize        = 50 * 1024 * 1024  // 50MB
	EnterpriseMaxFileSize = 500 * 1024 * 1024 // 500MB
)

// GuestConversionLimit caps lifetime conversions for unauthenticated users.
const GuestConversionLimit = 3

// Limits fixes the two enforcement knobs for a tier.
type Limits struct {
	Conversions int   `json:"conversions"`   // Unlimited (-1) means no cap
	MaxFileSize int64 `json:"max_file_size"` // bytes
}

// tierLimits is the authoritative tier table. Values match what the
// auth endpoints seed at registration and upgrade time.
var tierLimits = map[Tier]Limits{
	TierGuest:      {Conversions: GuestConversionLimit, MaxFileSize: GuestMaxFileSize},
	TierFree:       {Conversions: 10, MaxFileSize: FreeMaxFileSize},
	TierPro:        {Conversions: 100, MaxFileSize: ProMaxFileSize},
	TierEnterprise: {Conversions: Unlimited, MaxFileSize: EnterpriseMaxFileSize},
}

// LimitsFor returns the limits for a tier. Unknown or empty tiers get
// free-plan limits — the safe default for a record we don't recognize.
func LimitsFor(t Tier) Limits {
	if l, ok := tierLimits[t]; ok {
		return l
	}
	return tierLimits[TierFree]
}

// Valid reports whether t names a purchasable plan (guest excluded).
func Valid(t Tier) bool {
	return t == TierFree || t == TierPro || t == TierEnterprise
}

// UpgradeableTo reports whether t can be the target of an upgrade.
func UpgradeableTo(t Tier) bool {
	return t == TierPro || t == TierEnterprise
}

// Reason explains a limit decision.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonGuestLimitReached Reason = "guest_limit_reached"
	ReasonFileTooLarge      Reason = "file_too_large"
	ReasonPlanLimitReached  Reason = "plan_limit_reached"
)

// Decision is the outcome of a limit check.
//
// Remaining deliberately stays an exact count rather than a boolean:
// the UI treats remaining==1 (last-chance warning) differently from
// remaining==0 (hard stop). Unlimited plans report Unlimited=true and
// Remaining is meaningless.
type Decision struct {
	Allowed     bool   `json:"allowed"`
	Remaining   int    `json:"remaining"`
	Unlimited   bool   `json:"unlimited"`
	Reason      Reason `json:"reason"`
	MaxFileSize int64  `json:"max_file_size"`
}

// LastChance reports whether this is the final allowed conversion.
func (d Decision) LastChance() bool {
	return d.Allowed && !d.Unlimited && d.Remaining == 1
}

// Evaluate runs the two-part limit check for an identity on a given tier.
//
// The count check runs before the size check: a user who has exhausted
// their quota is told so regardless of how big the file is, matching
// the server's historical behavior. guest=true selects the guest-specific
// denial reason so the UI can prompt signup instead of upgrade.
func Evaluate(used int, limits Limits, fileSize int64, guest bool) Decision {
	if limits.Conversions != Unlimited && used >= limits.Conversions {
		reason := ReasonPlanLimitReached
		if guest {
			reason = ReasonGuestLimitReached
		}
		return Decision{
			Allowed:     false,
			Remaining:   0,
			Reason:      reason,
			MaxFileSize: limits.MaxFileSize,
		}
	}

	if fileSize > limits.MaxFileSize {
		return Decision{
			Allowed:     false,
			Remaining:   remaining(used, limits.Conversions),
			Unlimited:   limits.Conversions == Unlimited,
			Reason:      ReasonFileTooLarge,
			MaxFileSize: limits.MaxFileSize,
		}
	}

	return Decision{
		Allowed:     true,
		Remaining:   remaining(used, limits.Conversions),
		Unlimited:   limits.Conversions == Unlimited,
		Reason:      ReasonOK,
		MaxFileSize: limits.MaxFileSize,
	}
}

// Counter is a usage counter snapshot: how much has been spent against
// a limit. Every usage-updated and guest-usage-updated event carries one
// of these as its payload, whichever package publishes it.
type Counter struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"` // Unlimited (-1) means no cap
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

// CounterFor builds a Counter with Remaining clamped at zero.
func CounterFor(used, limit int) Counter {
	c := Counter{Used: used, Limit: limit, Unlimited: limit == Unlimited}
	if !c.Unlimited {
		c.Remaining = remaining(used, limit)
	}
	return c
}

// remaining clamps at zero; limit-1 plans never go negative even while a
// conversion is in flight between check and report.
func remaining(used, limit int) int {
	if limit == Unlimited {
		return 0
	}
	if r := limit - used; r > 0 {
		return r
	}
	return 0
}
