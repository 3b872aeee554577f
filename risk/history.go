package risk

import "time"

// DefaultHistorySize bounds each identity's interaction history.
const DefaultHistorySize = 100

// Interaction is one observed sign-in.
type Interaction struct {
	At        time.Time `json:"at"`
	LoginHour int       `json:"login_hour"`
	Client    string    `json:"client,omitempty"`
	Challenge string    `json:"challenge,omitempty"`
}

// NewInteraction builds an interaction at at. A negative hour is replaced by
// at's hour in UTC.
func NewInteraction(at time.Time, hour int, client, challenge string) Interaction {
	if hour < 0 || hour > 23 {
		hour = at.UTC().Hour()
	}
	return Interaction{At: at, LoginHour: hour, Client: client, Challenge: challenge}
}

// History is a fixed-capacity FIFO ring. The oldest entry is evicted when a
// full history is appended to.
type History struct {
	buf   []Interaction
	start int
	size  int
}

// NewHistory returns an empty history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]Interaction, capacity)}
}

// Append adds in, evicting the oldest entry when full.
func (h *History) Append(in Interaction) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = in
		h.size++
		return
	}
	h.buf[h.start] = in
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored interactions.
func (h *History) Len() int { return h.size }

// Cap returns the history capacity.
func (h *History) Cap() int { return len(h.buf) }

// Snapshot returns the stored interactions oldest first.
func (h *History) Snapshot() []Interaction {
	out := make([]Interaction, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}
