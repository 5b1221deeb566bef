// Package localstore persists guest usage on the local device.
//
// This is the only record of guest conversions — there is no server row
// for a guest. State lives in a single JSON file under the user's state
// directory, written synchronously on every mutation so each conversion
// is a durable point-in-time event. Deleting the file resets the guest
// counter; that is by contract a device-scoped soft gate, not a security
// boundary, so every operation degrades to a silent no-op when storage
// is unavailable rather than blocking the conversion flow.
package localstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagecraft-labs/file-converter-api/internal/models"
)

// HistoryCap bounds the guest conversion history. Oldest entries are
// evicted first.
const HistoryCap = 10

const stateFile = "guest.json"

// state is the on-disk shape. One file, one JSON object — the
// localStorage keys of the browser client collapsed into a struct.
type state struct {
	DeviceID            string                    `json:"device_id"`
	GuestConversions    int                       `json:"guest_conversions"`
	LastGuestConversion time.Time                 `json:"last_guest_conversion"`
	History             []models.ConversionRecord `json:"history"`
	HasVisited          bool                      `json:"has_visited"`
}

// Store is a synchronous, device-scoped usage store.
//
// The mutex makes read-modify-write atomic: there is never a suspension
// point between reading the counter and writing it back, so a rapid
// double-submit cannot double-count.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a store rooted at dir, creating the directory if missing.
// A store whose directory cannot be created still works — it just
// reports zero counts and drops writes.
func New(dir string) *Store {
	_ = os.MkdirAll(dir, 0o755)
	return &Store{path: filepath.Join(dir, stateFile)}
}

// DefaultDir returns the per-user state directory for the converter.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "file-converter")
}

// Count returns the guest conversion count, 0 if absent or unreadable.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().GuestConversions
}

// Increment bumps the guest counter by exactly one and persists
// immediately. Returns the new count.
func (s *Store) Increment() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	st.GuestConversions++
	st.LastGuestConversion = time.Now().UTC()
	s.save(st)
	return st.GuestConversions
}

// AppendHistory adds a record to the guest history, evicting the oldest
// entries beyond HistoryCap.
func (s *Store) AppendHistory(rec models.ConversionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	st.History = append(st.History, rec)
	if n := len(st.History); n > HistoryCap {
		st.History = st.History[n-HistoryCap:]
	}
	s.save(st)
}

// History returns the retained guest records, oldest first.
func (s *Store) History() []models.ConversionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	out := make([]models.ConversionRecord, len(st.History))
	copy(out, st.History)
	return out
}

// HasVisited reports whether this device has loaded the app before.
func (s *Store) HasVisited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().HasVisited
}

// MarkVisited sets the first-visit flag.
func (s *Store) MarkVisited() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	st.HasVisited = true
	s.save(st)
}

// DeviceID returns a stable identifier for this device, minted on first
// use. Clearing the store mints a new one.
func (s *Store) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	if st.DeviceID == "" {
		st.DeviceID = uuid.NewString()
		s.save(st)
	}
	return st.DeviceID
}

// Clear resets all guest state — counter, history, flags. The explicit
// storage-clear path; nothing else ever decreases the counter.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(s.path)
}

// load reads the state file. Missing or corrupt files yield zero state —
// the same "default 0 if absent" contract localStorage gave the original.
func (s *Store) load() state {
	var st state
	data, err := os.ReadFile(s.path)
	if err != nil {
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return state{}
	}
	return st
}

// save writes the state file, silently dropping the write on failure.
func (s *Store) save(st state) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(s.path, data, 0o600)
}
