package requests

import (
	"fmt"
	"strings"
	"time"
)

// State represents the lifecycle of a download request.
type State string

const (
	StatePendingLookup  State = "pending_lookup"
	StateNotYetReleased State = "not_yet_released"
	StateQueued         State = "queued"
	StateDownloading    State = "downloading"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

var allStates = []State{
	StatePendingLookup,
	StateNotYetReleased,
	StateQueued,
	StateDownloading,
	StateCompleted,
	StateFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a state receives no further reconciliation.
// Failed requests stay active so an explicit retry can revive them, but the
// monitor does not poll them.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// ActiveStates returns the states the reconciliation monitor polls.
func ActiveStates() []State {
	return []State{StatePendingLookup, StateNotYetReleased, StateQueued, StateDownloading}
}

// Request represents one tracked movie persisted in SQLite. Requests are
// keyed by TMDB id: a second ask for the same movie appends a requester
// instead of creating a new row.
type Request struct {
	TMDBID          int64
	Title           string
	Year            int
	Requesters      []string
	State           State
	RadarrMovieID   int64 // 0 until the movie is queued with Radarr
	ReleaseDate     *time.Time
	ProgressPercent float64
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Revision guards optimistic writes: Update only succeeds when the row
	// still carries this revision.
	Revision int64

	// Notified holds the persisted (state, phone) notification markers for
	// this request, keyed by MarkerKey. Populated on read, never written by
	// Update; markers are claimed individually through ClaimNotification.
	Notified map[string]struct{}
}

// MarkerKey builds the idempotency key for one (state, phone) notification.
func MarkerKey(state State, phone string) string {
	return string(state) + "|" + phone
}

// HasRequester reports whether the phone number already asked for this movie.
func (r *Request) HasRequester(phone string) bool {
	for _, existing := range r.Requesters {
		if existing == phone {
			return true
		}
	}
	return false
}

// AddRequester appends a phone number to the requester set. Returns false
// when the number was already present.
func (r *Request) AddRequester(phone string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" || r.HasRequester(phone) {
		return false
	}
	r.Requesters = append(r.Requesters, phone)
	return true
}

// AlreadyNotified reports whether the (state, phone) pair has a claimed marker.
func (r *Request) AlreadyNotified(state State, phone string) bool {
	if r.Notified == nil {
		return false
	}
	_, ok := r.Notified[MarkerKey(state, phone)]
	return ok
}

// DisplayTitle formats the request for user-facing messages.
func (r *Request) DisplayTitle() string {
	if r.Year > 0 {
		return fmt.Sprintf("%s (%d)", r.Title, r.Year)
	}
	return r.Title
}

// Message is one stored SMS conversation turn for a phone number.
type Message struct {
	Role      string
	Body      string
	CreatedAt time.Time
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Summary aggregates request counts per lifecycle state.
type Summary struct {
	Total       int
	Pending     int
	Unreleased  int
	Queued      int
	Downloading int
	Completed   int
	Failed      int
}
