package usecase

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"wordlens/internal/domain"
	"wordlens/internal/ports"
)

// WordDisplay owns the single visible word token and its expiry. Installing
// a new token supersedes any prior token and its pending expiry in one step;
// the slot clears once the hold duration elapses without a newer word.
type WordDisplay struct {
	events ports.EventSink
	expire func(func())

	mu      sync.Mutex
	current *domain.WordToken
	closed  bool
}

func NewWordDisplay(events ports.EventSink, hold time.Duration) *WordDisplay {
	if hold <= 0 {
		hold = time.Second
	}
	return &WordDisplay{events: events, expire: debounce.New(hold)}
}

// Current returns the token on screen, if any.
func (d *WordDisplay) Current() (domain.WordToken, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return domain.WordToken{}, false
	}
	return *d.current, true
}

// Show installs a new token with a fresh identifier and re-arms the expiry.
func (d *WordDisplay) Show(text string) (domain.WordToken, bool) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return domain.WordToken{}, false
	}
	token := domain.WordToken{ID: uuid.NewString(), Text: text}
	d.current = &token
	d.mu.Unlock()

	d.events.WordShown(token)
	d.expire(d.clearExpired)
	return token, true
}

func (d *WordDisplay) clearExpired() {
	d.mu.Lock()
	if d.closed || d.current == nil {
		d.mu.Unlock()
		return
	}
	id := d.current.ID
	d.current = nil
	d.mu.Unlock()

	d.events.WordCleared(id)
}

// Close empties the slot and mutes any expiry still in flight.
func (d *WordDisplay) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	token := d.current
	d.current = nil
	d.mu.Unlock()

	if token != nil {
		d.events.WordCleared(token.ID)
	}
}
