// guest.go tracks anonymous conversion counts in a signed session cookie.
//
// Guests have no account row, so the server mirrors their counter in a
// gorilla/sessions cookie. The client keeps its own device-local count
// and the two advise each other: the cookie survives a cleared local
// store, the local store survives cleared cookies. Neither is tamper
// proof — the signed cookie just raises the bar from "edit a JSON file"
// to "forge an HMAC".
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	guestSessionName = "fc_guest"
	guestCountKey    = "guest_conversions"
	guestSessionAge  = 30 * 24 * 60 * 60 // seconds
)

// GuestTracker reads and writes the guest counter cookie.
type GuestTracker struct {
	store *sessions.CookieStore
}

// NewGuestTracker builds a tracker. The secret signs cookies; secure
// should be true whenever the API is served over HTTPS.
func NewGuestTracker(secret string, secure bool) *GuestTracker {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   guestSessionAge,
		HttpOnly: true,
		Secure:   secure,
	}
	return &GuestTracker{store: store}
}

// Count returns the guest conversion count recorded in the request's
// session cookie. A missing or unreadable cookie counts as zero — a
// fresh guest.
func (g *GuestTracker) Count(c *gin.Context) int {
	session, err := g.store.Get(c.Request, guestSessionName)
	if err != nil {
		return 0
	}
	n, ok := session.Values[guestCountKey].(int)
	if !ok {
		return 0
	}
	return n
}

// Increment bumps the cookie counter by one and writes the updated
// cookie to the response. Returns the new count.
func (g *GuestTracker) Increment(c *gin.Context) int {
	session, _ := g.store.Get(c.Request, guestSessionName)
	n, _ := session.Values[guestCountKey].(int)
	n++
	session.Values[guestCountKey] = n
	// A failed save means the guest keeps their old cookie; the device
	// local counter still advances, so nothing is lost.
	_ = session.Save(c.Request, c.Writer)
	return n
}
