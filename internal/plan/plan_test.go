// plan_test.go — Unit tests for the shared limit evaluation.
//
// Go Pattern: Table-driven tests are the standard Go testing pattern.
// Every allow/deny rule the product promises lives here, so both the
// server handlers and the client fallback inherit one tested truth.
package plan

import "testing"

func TestEvaluateGuest(t *testing.T) {
	guest := LimitsFor(TierGuest)

	tests := []struct {
		name          string
		used          int
		fileSize      int64
		wantAllowed   bool
		wantRemaining int
		wantReason    Reason
	}{
		{
			name:          "fresh guest small file",
			used:          0,
			fileSize:      1 * 1024 * 1024,
			wantAllowed:   true,
			wantRemaining: 3,
			wantReason:    ReasonOK,
		},
		{
			name:          "two conversions used",
			used:          2,
			fileSize:      1024,
			wantAllowed:   true,
			wantRemaining: 1,
			wantReason:    ReasonOK,
		},
		{
			name:          "limit reached",
			used:          3,
			fileSize:      1024,
			wantAllowed:   false,
			wantRemaining: 0,
			wantReason:    ReasonGuestLimitReached,
		},
		{
			name:          "limit reached wins over file size",
			used:          3,
			fileSize:      100 * 1024 * 1024,
			wantAllowed:   false,
			wantRemaining: 0,
			wantReason:    ReasonGuestLimitReached,
		},
		{
			name:          "over limit stays denied",
			used:          7,
			fileSize:      1024,
			wantAllowed:   false,
			wantRemaining: 0,
			wantReason:    ReasonGuestLimitReached,
		},
		{
			name:          "file too large with conversions left",
			used:          1,
			fileSize:      GuestMaxFileSize + 1,
			wantAllowed:   false,
			wantRemaining: 2,
			wantReason:    ReasonFileTooLarge,
		},
		{
			name:          "file exactly at the cap",
			used:          0,
			fileSize:      GuestMaxFileSize,
			wantAllowed:   true,
			wantRemaining: 3,
			wantReason:    ReasonOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.used, guest, tt.fileSize, true)
			if got.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.wantAllowed)
			}
			if got.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", got.Remaining, tt.wantRemaining)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluateAccount(t *testing.T) {
	tests := []struct {
		name          string
		used          int
		limits        Limits
		fileSize      int64
		wantAllowed   bool
		wantRemaining int
		wantUnlimited bool
		wantReason    Reason
	}{
		{
			name:          "pro plan at limit",
			used:          100,
			limits:        LimitsFor(TierPro),
			fileSize:      1024,
			wantAllowed:   false,
			wantRemaining: 0,
			wantReason:    ReasonPlanLimitReached,
		},
		{
			name:          "pro plan under limit",
			used:          40,
			limits:        LimitsFor(TierPro),
			fileSize:      10 * 1024 * 1024,
			wantAllowed:   true,
			wantRemaining: 60,
			wantReason:    ReasonOK,
		},
		{
			name:          "enterprise never hits the count cap",
			used:          10000,
			limits:        LimitsFor(TierEnterprise),
			fileSize:      400 * 1024 * 1024,
			wantAllowed:   true,
			wantUnlimited: true,
			wantReason:    ReasonOK,
		},
		{
			name:          "enterprise still enforces file size",
			used:          10,
			limits:        LimitsFor(TierEnterprise),
			fileSize:      EnterpriseMaxFileSize + 1,
			wantAllowed:   false,
			wantUnlimited: true,
			wantReason:    ReasonFileTooLarge,
		},
		{
			name:          "free plan file too large",
			used:          0,
			limits:        LimitsFor(TierFree),
			fileSize:      6 * 1024 * 1024,
			wantAllowed:   false,
			wantRemaining: 10,
			wantReason:    ReasonFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.used, tt.limits, tt.fileSize, false)
			if got.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.wantAllowed)
			}
			if got.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", got.Remaining, tt.wantRemaining)
			}
			if got.Unlimited != tt.wantUnlimited {
				t.Errorf("Unlimited = %v, want %v", got.Unlimited, tt.wantUnlimited)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

// TestEvaluateIdempotent verifies that checking limits twice with the
// same inputs yields identical results — the check itself never mutates.
func TestEvaluateIdempotent(t *testing.T) {
	limits := LimitsFor(TierPro)
	first := Evaluate(42, limits, 1024, false)
	second := Evaluate(42, limits, 1024, false)
	if first != second {
		t.Errorf("Evaluate is not idempotent: %+v != %+v", first, second)
	}
}

func TestLastChance(t *testing.T) {
	guest := LimitsFor(TierGuest)

	if d := Evaluate(2, guest, 1024, true); !d.LastChance() {
		t.Errorf("remaining=1 should be last chance, got %+v", d)
	}
	if d := Evaluate(0, guest, 1024, true); d.LastChance() {
		t.Errorf("remaining=3 should not be last chance, got %+v", d)
	}
	if d := Evaluate(3, guest, 1024, true); d.LastChance() {
		t.Errorf("denied decision should not be last chance, got %+v", d)
	}
	if d := Evaluate(500, LimitsFor(TierEnterprise), 1024, false); d.LastChance() {
		t.Errorf("unlimited plan should never be last chance, got %+v", d)
	}
}

func TestLimitsFor(t *testing.T) {
	tests := []struct {
		name     string
		tier     Tier
		wantConv int
		wantSize int64
	}{
		{"guest", TierGuest, 3, 5 * 1024 * 1024},
		{"free", TierFree, 10, 5 * 1024 * 1024},
		{"pro", TierPro, 100, 50 * 1024 * 1024},
		{"enterprise", TierEnterprise, Unlimited, 500 * 1024 * 1024},
		{"unknown tier defaults to free", Tier("platinum"), 10, 5 * 1024 * 1024},
		{"empty tier defaults to free", Tier(""), 10, 5 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LimitsFor(tt.tier)
			if got.Conversions != tt.wantConv || got.MaxFileSize != tt.wantSize {
				t.Errorf("LimitsFor(%q) = %+v, want {%d %d}", tt.tier, got, tt.wantConv, tt.wantSize)
			}
		})
	}
}
