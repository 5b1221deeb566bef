// Package quota decides whether a conversion may proceed and accounts
// for completed ones.
//
// The Oracle is the single authority for "may this conversion run". It
// reconciles three sources of truth — the server's counters, the local
// guest store, and the cached account snapshot — and always degrades to
// local data instead of hard-failing when the server is unreachable. An
// offline window can therefore let an account exceed its quota; that is
// an accepted availability-over-consistency tradeoff, bounded in damage
// by the guest cap on the anonymous side.
package quota

import (
	"context"
	"errors"
	"time"

	"github.com/pagecraft-labs/file-converter-api/internal/events"
	"github.com/pagecraft-labs/file-converter-api/internal/localstore"
	"github.com/pagecraft-labs/file-converter-api/internal/models"
	"github.com/pagecraft-labs/file-converter-api/internal/plan"
	"github.com/pagecraft-labs/file-converter-api/internal/session"
)

// UpdatedCounter is the usage state after a reported conversion. It is
// plan.Counter — the shared payload type for usage events — under the
// name this package's callers know it by.
type UpdatedCounter = plan.Counter

// Oracle gates conversions for the current identity.
type Oracle struct {
	session *session.Client
	local   *localstore.Store
	bus     *events.Bus
}

// New wires the oracle to its three inputs.
func New(sc *session.Client, local *localstore.Store, bus *events.Bus) *Oracle {
	return &Oracle{session: sc, local: local, bus: bus}
}

// CheckLimits decides whether a conversion of fileSize may proceed.
//
// Guests are decided entirely from the local store — no network. For
// accounts the server decides; if it cannot be reached (or replies with
// garbage), the last-known cached limits decide instead. Checking never
// consumes quota, so calling twice with no intervening ReportUsage
// yields identical results.
func (o *Oracle) CheckLimits(ctx context.Context, fileSize int64) plan.Decision {
	id := o.session.Identity()
	if id.Guest {
		return o.checkGuest(fileSize)
	}

	resp, err := o.session.CheckLimits(ctx, fileSize)
	switch {
	case err == nil:
		return plan.Decision{
			Allowed:     resp.Allowed,
			Remaining:   resp.Remaining,
			Unlimited:   resp.Unlimited,
			Reason:      resp.Reason,
			MaxFileSize: resp.MaxFileSize,
		}
	case errors.Is(err, session.ErrUnauthorized):
		// The session client has already dropped to Anonymous and
		// broadcast logout; this request continues as a guest.
		return o.checkGuest(fileSize)
	default:
		// Degraded mode: evaluate against the cached snapshot.
		cached := o.session.Identity()
		if cached.Guest || cached.User == nil {
			// No cache to fall back on — fail closed.
			return plan.Decision{Reason: plan.ReasonPlanLimitReached}
		}
		return plan.Evaluate(cached.User.ConversionsUsed, cached.User.Limits(), fileSize, false)
	}
}

func (o *Oracle) checkGuest(fileSize int64) plan.Decision {
	return plan.Evaluate(o.local.Count(), plan.LimitsFor(plan.TierGuest), fileSize, true)
}

// ReportUsage accounts for one successfully completed conversion: the
// single event that ever increases a usage counter, by exactly one.
//
// Guests persist locally and immediately. Accounts report to the server;
// if that fails the cached shadow counter is bumped instead and no retry
// is queued — the increment may be lost, which is accepted for a counter
// that is never used for billing precision.
func (o *Oracle) ReportUsage(ctx context.Context, rec models.ConversionRecord) UpdatedCounter {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	id := o.session.Identity()
	if id.Guest {
		return o.reportGuest(rec)
	}

	resp, err := o.session.TrackConversion(ctx, rec)
	switch {
	case err == nil:
		o.session.AdoptCounters(resp.Used, resp.Limit)
		counter := UpdatedCounter{
			Used:      resp.Used,
			Limit:     resp.Limit,
			Remaining: resp.Remaining,
			Unlimited: resp.Limit == plan.Unlimited,
		}
		o.bus.Publish(events.Event{Type: events.UsageUpdated, Payload: counter})
		return counter
	case errors.Is(err, session.ErrUnauthorized):
		return o.reportGuest(rec)
	default:
		user := o.session.BumpShadowCounter()
		counter := plan.CounterFor(user.ConversionsUsed, user.ConversionsLimit)
		o.bus.Publish(events.Event{Type: events.UsageUpdated, Payload: counter})
		return counter
	}
}

// reportGuest increments the device counter and appends to the capped
// history in one synchronous pass — no suspension point sits between
// reading and writing the count.
func (o *Oracle) reportGuest(rec models.ConversionRecord) UpdatedCounter {
	used := o.local.Increment()
	o.local.AppendHistory(rec)

	counter := plan.CounterFor(used, plan.GuestConversionLimit)
	o.bus.Publish(events.Event{Type: events.GuestUsageUpdated, Payload: counter})
	return counter
}
