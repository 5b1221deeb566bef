// oracle_test.go — behavioral tests for the limit oracle.
//
// Each test spins up a fake metering backend with httptest and drives
// the oracle through the real session client, so the guest branch, the
// server branch, and the degraded fallback are all exercised end to end.
package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pagecraft-labs/file-converter-api/internal/events"
	"github.com/pagecraft-labs/file-converter-api/internal/localstore"
	"github.com/pagecraft-labs/file-converter-api/internal/models"
	"github.com/pagecraft-labs/file-converter-api/internal/plan"
	"github.com/pagecraft-labs/file-converter-api/internal/session"
)

// fakeBackend is a minimal stand-in for the metering API.
type fakeBackend struct {
	user        models.User
	trackCalls  atomic.Int32
	failTrack   bool
	unauthorize bool // reply 401 to everything authenticated
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.AuthResponse{Success: true, Token: "test-token", User: f.user})
	})

	mux.HandleFunc("POST /api/v1/conversions/check-limits", func(w http.ResponseWriter, r *http.Request) {
		if f.unauthorize {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req models.CheckLimitsRequest
		json.NewDecoder(r.Body).Decode(&req)
		d := plan.Evaluate(f.user.ConversionsUsed, f.user.Limits(), req.FileSize, false)
		json.NewEncoder(w).Encode(models.CheckLimitsResponse{
			Success:     true,
			Allowed:     d.Allowed,
			Remaining:   d.Remaining,
			Unlimited:   d.Unlimited,
			Reason:      d.Reason,
			MaxFileSize: d.MaxFileSize,
			Plan:        f.user.PlanType,
		})
	})

	mux.HandleFunc("POST /api/v1/conversions/track", func(w http.ResponseWriter, r *http.Request) {
		if f.unauthorize {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.failTrack {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: "database_error", Message: "insert failed", Code: 500})
			return
		}
		f.trackCalls.Add(1)
		f.user.ConversionsUsed++
		remaining := 0
		if f.user.ConversionsLimit != plan.Unlimited {
			remaining = f.user.ConversionsLimit - f.user.ConversionsUsed
		}
		json.NewEncoder(w).Encode(models.TrackConversionResponse{
			Success:   true,
			Used:      f.user.ConversionsUsed,
			Limit:     f.user.ConversionsLimit,
			Remaining: remaining,
		})
	})

	return mux
}

// newGuestOracle builds an oracle with no session at all.
func newGuestOracle(t *testing.T) (*Oracle, *localstore.Store, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	local := localstore.New(t.TempDir())
	sc := session.New("http://127.0.0.1:0", t.TempDir(), bus)
	return New(sc, local, bus), local, bus
}

// newAccountOracle logs a session client in against the fake backend.
func newAccountOracle(t *testing.T, f *fakeBackend) (*Oracle, *session.Client, *httptest.Server, *events.Bus) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	bus := events.NewBus()
	local := localstore.New(t.TempDir())
	sc := session.New(srv.URL, t.TempDir(), bus)
	if _, err := sc.Login(context.Background(), f.user.Email, "password123"); err != nil {
		t.Fatalf("login against fake backend: %v", err)
	}
	return New(sc, local, bus), sc, srv, bus
}

func record(name string) models.ConversionRecord {
	return models.ConversionRecord{
		ConversionType: models.ConversionPDFToImages,
		Filename:       name,
		FileSize:       1024,
		PagesConverted: 1,
		OutputFormat:   "png",
		QualitySetting: "high",
	}
}

func TestFreshGuestFlow(t *testing.T) {
	o, _, _ := newGuestOracle(t)
	ctx := context.Background()

	// Scenario: fresh guest, 1MB file.
	d := o.CheckLimits(ctx, 1*1024*1024)
	if !d.Allowed || d.Remaining != 3 || d.Reason != plan.ReasonOK {
		t.Fatalf("fresh guest decision = %+v, want allowed with remaining 3", d)
	}

	counter := o.ReportUsage(ctx, record("a.pdf"))
	if counter.Used != 1 || counter.Remaining != 2 {
		t.Errorf("counter after report = %+v, want used=1 remaining=2", counter)
	}

	d = o.CheckLimits(ctx, 1*1024*1024)
	if !d.Allowed || d.Remaining != 2 {
		t.Errorf("decision after one conversion = %+v, want remaining 2", d)
	}
}

func TestGuestLimitReachedRegardlessOfFileSize(t *testing.T) {
	o, _, _ := newGuestOracle(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		o.ReportUsage(ctx, record(fmt.Sprintf("f%d.pdf", i)))
	}

	for _, size := range []int64{1, 1024, 100 * 1024 * 1024} {
		d := o.CheckLimits(ctx, size)
		if d.Allowed || d.Reason != plan.ReasonGuestLimitReached {
			t.Errorf("size %d: decision = %+v, want guest_limit_reached", size, d)
		}
	}
}

func TestGuestFileTooLarge(t *testing.T) {
	o, _, _ := newGuestOracle(t)

	d := o.CheckLimits(context.Background(), plan.GuestMaxFileSize+1)
	if d.Allowed || d.Reason != plan.ReasonFileTooLarge {
		t.Errorf("decision = %+v, want file_too_large", d)
	}
	if d.Remaining != 3 {
		t.Errorf("remaining = %d, want 3 (count untouched by size denial)", d.Remaining)
	}
}

func TestCheckLimitsIdempotent(t *testing.T) {
	o, _, _ := newGuestOracle(t)
	ctx := context.Background()

	first := o.CheckLimits(ctx, 2048)
	second := o.CheckLimits(ctx, 2048)
	if first != second {
		t.Errorf("two checks with no intervening report differ: %+v vs %+v", first, second)
	}
}

func TestReportUsageMonotonic(t *testing.T) {
	o, local, _ := newGuestOracle(t)
	ctx := context.Background()

	prev := local.Count()
	for i := 0; i < 5; i++ {
		counter := o.ReportUsage(ctx, record("m.pdf"))
		if counter.Used != prev+1 {
			t.Fatalf("report %d: used = %d, want %d", i, counter.Used, prev+1)
		}
		prev = counter.Used
	}
}

func TestGuestHistoryCap(t *testing.T) {
	o, local, _ := newGuestOracle(t)
	ctx := context.Background()

	for i := 1; i <= 11; i++ {
		o.ReportUsage(ctx, record(fmt.Sprintf("file-%d.pdf", i)))
	}

	history := local.History()
	if len(history) != 10 {
		t.Fatalf("history length = %d, want 10", len(history))
	}
	if history[0].Filename != "file-2.pdf" {
		t.Errorf("entry #1 should be evicted; oldest retained = %q", history[0].Filename)
	}
}

func TestGuestUsageEvent(t *testing.T) {
	o, _, bus := newGuestOracle(t)

	var got []events.Event
	bus.Subscribe(func(e events.Event) { got = append(got, e) })

	o.ReportUsage(context.Background(), record("e.pdf"))

	if len(got) != 1 || got[0].Type != events.GuestUsageUpdated {
		t.Fatalf("events = %+v, want one guest-usage-updated", got)
	}
	counter, ok := got[0].Payload.(UpdatedCounter)
	if !ok || counter.Used != 1 || counter.Remaining != 2 {
		t.Errorf("event payload = %+v, want used=1 remaining=2", got[0].Payload)
	}
}

func TestAccountPlanLimitReached(t *testing.T) {
	f := &fakeBackend{user: models.User{
		ID: 1, Email: "pro@example.com", PlanType: plan.TierPro,
		ConversionsUsed: 100, ConversionsLimit: 100, MaxFileSize: plan.ProMaxFileSize,
	}}
	o, _, _, _ := newAccountOracle(t, f)

	d := o.CheckLimits(context.Background(), 1024)
	if d.Allowed || d.Reason != plan.ReasonPlanLimitReached {
		t.Errorf("decision = %+v, want plan_limit_reached", d)
	}
}

func TestAccountUnlimitedPlan(t *testing.T) {
	f := &fakeBackend{user: models.User{
		ID: 2, Email: "ent@example.com", PlanType: plan.TierEnterprise,
		ConversionsUsed: 10000, ConversionsLimit: plan.Unlimited, MaxFileSize: plan.EnterpriseMaxFileSize,
	}}
	o, _, _, _ := newAccountOracle(t, f)

	d := o.CheckLimits(context.Background(), 400*1024*1024)
	if !d.Allowed || !d.Unlimited || d.Reason != plan.ReasonOK {
		t.Errorf("decision = %+v, want allowed and unlimited", d)
	}
}

func TestAccountDegradedFallbackUsesCache(t *testing.T) {
	f := &fakeBackend{user: models.User{
		ID: 3, Email: "cached@example.com", PlanType: plan.TierFree,
		ConversionsUsed: 5, ConversionsLimit: 10, MaxFileSize: plan.FreeMaxFileSize,
	}}
	o, _, srv, _ := newAccountOracle(t, f)

	// Server goes away; the cached snapshot {limit:10, used:5} decides.
	srv.Close()

	d := o.CheckLimits(context.Background(), 1024)
	if !d.Allowed || d.Remaining != 5 || d.Reason != plan.ReasonOK {
		t.Errorf("degraded decision = %+v, want allowed with remaining 5", d)
	}
}

func TestAccountTrackSuccessAdoptsCounters(t *testing.T) {
	f := &fakeBackend{user: models.User{
		ID: 4, Email: "free@example.com", PlanType: plan.TierFree,
		ConversionsUsed: 2, ConversionsLimit: 10, MaxFileSize: plan.FreeMaxFileSize,
	}}
	o, sc, _, bus := newAccountOracle(t, f)

	var eventTypes []events.Type
	bus.Subscribe(func(e events.Event) { eventTypes = append(eventTypes, e.Type) })

	counter := o.ReportUsage(context.Background(), record("t.pdf"))
	if counter.Used != 3 || counter.Remaining != 7 {
		t.Errorf("counter = %+v, want used=3 remaining=7", counter)
	}
	if f.trackCalls.Load() != 1 {
		t.Errorf("track calls = %d, want exactly 1", f.trackCalls.Load())
	}
	if id := sc.Identity(); id.User == nil || id.User.ConversionsUsed != 3 {
		t.Errorf("cached snapshot not updated: %+v", id.User)
	}
	if len(eventTypes) != 1 || eventTypes[0] != events.UsageUpdated {
		t.Errorf("events = %v, want one usage-updated", eventTypes)
	}
}

func TestAccountTrackFailureBumpsShadowCounter(t *testing.T) {
	f := &fakeBackend{
		user: models.User{
			ID: 5, Email: "shadow@example.com", PlanType: plan.TierFree,
			ConversionsUsed: 4, ConversionsLimit: 10, MaxFileSize: plan.FreeMaxFileSize,
		},
		failTrack: true,
	}
	o, sc, _, _ := newAccountOracle(t, f)

	counter := o.ReportUsage(context.Background(), record("s.pdf"))
	if counter.Used != 5 {
		t.Errorf("shadow counter = %+v, want used=5", counter)
	}
	if id := sc.Identity(); id.User == nil || id.User.ConversionsUsed != 5 {
		t.Errorf("cached snapshot = %+v, want used=5", id.User)
	}
}

func TestSessionExpiryFallsBackToGuest(t *testing.T) {
	f := &fakeBackend{
		user: models.User{
			ID: 6, Email: "expired@example.com", PlanType: plan.TierPro,
			ConversionsUsed: 0, ConversionsLimit: 100, MaxFileSize: plan.ProMaxFileSize,
		},
		unauthorize: true,
	}
	o, sc, _, bus := newAccountOracle(t, f)

	var sawLogout bool
	bus.Subscribe(func(e events.Event) {
		if e.Type == events.Logout {
			sawLogout = true
		}
	})

	// The 401 tears the session down and the check proceeds as a guest.
	d := o.CheckLimits(context.Background(), 1024)
	if !d.Allowed || d.Remaining != 3 {
		t.Errorf("post-expiry decision = %+v, want fresh-guest allowance", d)
	}
	if !sawLogout {
		t.Error("no logout event broadcast on session expiry")
	}
	if sc.State() != session.StateAnonymous {
		t.Errorf("session state = %q, want anonymous", sc.State())
	}
}
