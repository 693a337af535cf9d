package live

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/HendryAvila/tracky/internal/telemetry"
)

// Callback receives updates for one subscription. A returned error is logged
// and counted; it never stops delivery to other subscribers.
type Callback func(u Update) error

// Reader builds the current view of a resource.
type Reader interface {
	Read(ctx context.Context, uri string) (any, error)
}

// Subscription is one registered (uri, subscriber, callback) triple.
type Subscription struct {
	URI          string
	SubscriberID string

	cb Callback
	// ready is closed once the initial full push has been delivered.
	ready chan struct{}
	// dead marks an entry rolled back after a failed initial read.
	dead bool
}

// Registry keeps per-URI subscriber lists and delivers updates to them.
//
// Entries are kept in insertion order and are distinguished by identity, not
// by (uri, subscriber): subscribing the same pair twice yields two entries
// and duplicate deliveries.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	reader Reader

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewRegistry creates an empty registry. SetReader must be called before
// Subscribe.
func NewRegistry(logger *slog.Logger, metrics *telemetry.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		subs:    make(map[string][]*Subscription),
		logger:  logger,
		metrics: metrics,
	}
}

// SetReader wires the view builder used for initial pushes.
func (r *Registry) SetReader(reader Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reader = reader
}

// Subscribe registers cb for uri and synchronously pushes one full update
// with the current view. No other update reaches cb before that push
// returns. If the initial read fails the entry is removed and the error
// returned.
func (r *Registry) Subscribe(ctx context.Context, uri, subscriberID string, cb Callback) error {
	if cb == nil {
		return fmt.Errorf("subscribe %s: nil callback", uri)
	}
	sub := &Subscription{
		URI:          uri,
		SubscriberID: subscriberID,
		cb:           cb,
		ready:        make(chan struct{}),
	}
	defer close(sub.ready)

	r.mu.Lock()
	reader := r.reader
	if reader == nil {
		r.mu.Unlock()
		return fmt.Errorf("subscribe %s: registry has no reader", uri)
	}
	r.subs[uri] = append(r.subs[uri], sub)
	r.mu.Unlock()
	r.metrics.AddSubscriptions(1)

	data, err := reader.Read(ctx, uri)
	if err != nil {
		r.remove(sub)
		return err
	}

	r.invoke(sub, Update{
		Type:      UpdateFull,
		URI:       uri,
		Data:      data,
		Timestamp: timestamp(),
	})
	return nil
}

// remove drops exactly one entry after a failed initial read.
func (r *Registry) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub.dead = true
	list := slices.DeleteFunc(r.subs[sub.URI], func(s *Subscription) bool { return s == sub })
	if len(list) == 0 {
		delete(r.subs, sub.URI)
	} else {
		r.subs[sub.URI] = list
	}
	r.metrics.AddSubscriptions(-1)
}

// Unsubscribe removes every entry for (uri, subscriberID). Unknown pairs are
// a no-op.
func (r *Registry) Unsubscribe(uri, subscriberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := r.subs[uri]
	if !ok {
		return
	}
	before := len(list)
	list = slices.DeleteFunc(list, func(s *Subscription) bool {
		if s.SubscriberID == subscriberID {
			s.dead = true
			return true
		}
		return false
	})
	if len(list) == 0 {
		delete(r.subs, uri)
	} else {
		r.subs[uri] = list
	}
	r.metrics.AddSubscriptions(len(list) - before)
}

// RemoveSubscriber drops every entry of subscriberID across all URIs and
// returns how many were removed.
func (r *Registry) RemoveSubscriber(subscriberID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for uri, list := range r.subs {
		list = slices.DeleteFunc(list, func(s *Subscription) bool {
			if s.SubscriberID == subscriberID {
				s.dead = true
				removed++
				return true
			}
			return false
		})
		if len(list) == 0 {
			delete(r.subs, uri)
		} else {
			r.subs[uri] = list
		}
	}
	r.metrics.AddSubscriptions(-removed)
	return removed
}

// NotifyAll delivers u to every subscriber of uri in insertion order. The
// registry lock is not held while callbacks run; each callback is isolated
// so a failing subscriber cannot stop delivery to the rest.
func (r *Registry) NotifyAll(uri string, u Update) {
	r.mu.RLock()
	list := slices.Clone(r.subs[uri])
	r.mu.RUnlock()

	scheme := schemeOf(uri)
	for _, sub := range list {
		<-sub.ready
		r.mu.RLock()
		dead := sub.dead
		r.mu.RUnlock()
		if dead {
			continue
		}
		if r.invoke(sub, u) {
			r.metrics.ObserveNotification(scheme, string(u.Type))
		}
	}
}

// invoke runs one callback, recovering panics.
func (r *Registry) invoke(sub *Subscription, u Update) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber callback panicked",
				"uri", sub.URI, "subscriber", sub.SubscriberID, "panic", rec)
			r.metrics.ObserveCallbackFailure()
			ok = false
		}
	}()
	if err := sub.cb(u); err != nil {
		r.logger.Warn("subscriber callback failed",
			"uri", sub.URI, "subscriber", sub.SubscriberID, "err", err)
		r.metrics.ObserveCallbackFailure()
		return false
	}
	return true
}

// SubscriberCount returns the number of entries for uri, duplicates included.
func (r *Registry) SubscriberCount(uri string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[uri])
}

// URIs returns the sorted URIs that have at least one subscription.
func (r *Registry) URIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uris := make([]string, 0, len(r.subs))
	for uri := range r.subs {
		uris = append(uris, uri)
	}
	slices.Sort(uris)
	return uris
}

// Close drops every subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, list := range r.subs {
		for _, s := range list {
			s.dead = true
		}
		n += len(list)
	}
	r.subs = make(map[string][]*Subscription)
	r.metrics.AddSubscriptions(-n)
}
