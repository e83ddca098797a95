package registry

import (
	"time"

	"github.com/grovetools/envwatch/pkg/envs"
)

// Update is broadcast to subscribers after a refresh cycle that changed
// something.
type Update struct {
	Report       Report             `json:"report"`
	Environments []envs.Environment `json:"environments,omitempty"`
	At           time.Time          `json:"at"`
}

// Subscribe returns a channel receiving every future Update.
func (r *Registry) Subscribe() chan Update {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	ch := make(chan Update, 100)
	r.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (r *Registry) Unsubscribe(ch chan Update) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if _, ok := r.subscribers[ch]; !ok {
		return
	}
	delete(r.subscribers, ch)
	close(ch)
}

func (r *Registry) publish(u Update) {
	u.At = time.Now()
	// Added environments are usually refreshed in the same cycle.
	for _, name := range uniqueSorted(append(append([]string{}, u.Report.Refreshed...), u.Report.Added...)) {
		if env, ok := r.Get(name); ok {
			u.Environments = append(u.Environments, env)
		}
	}

	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subscribers {
		select {
		case ch <- u:
		default:
			// Slow subscribers miss updates rather than stalling refreshes.
		}
	}
}
