package progression

import (
	"log/slog"
	"sync"
	"time"
)

// Update is a progress notification for one plan.
type Update struct {
	PlanID string    `json:"plan_id"`
	Type   string    `json:"type"`
	Plan   *Plan     `json:"plan,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

const subscriberBuffer = 16

// Notifier fans out plan updates to subscribers. Slow subscribers miss
// updates rather than blocking the publisher.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan Update]struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan Update]struct{})}
}

// Subscribe registers for updates on a plan. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
func (n *Notifier) Subscribe(planID string) (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	n.mu.Lock()
	if n.subs[planID] == nil {
		n.subs[planID] = make(map[chan Update]struct{})
	}
	n.subs[planID][ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[planID], ch)
			if len(n.subs[planID]) == 0 {
				delete(n.subs, planID)
			}
			close(ch)
		})
	}
}

// Publish delivers an update to every subscriber of its plan.
func (n *Notifier) Publish(u Update) {
	if n == nil {
		return
	}
	if u.At.IsZero() {
		u.At = time.Now()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[u.PlanID] {
		select {
		case ch <- u:
		default:
			slog.Warn("dropping plan update for slow subscriber", "plan_id", u.PlanID, "type", u.Type)
		}
	}
}

// Subscribers returns the number of active subscribers for a plan.
func (n *Notifier) Subscribers(planID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[planID])
}
