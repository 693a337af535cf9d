package live

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/HendryAvila/tracky/internal/project"
	"github.com/HendryAvila/tracky/internal/telemetry"
)

// Hub connects the entity store to subscribers: it diffs each committed
// mutation, resolves the affected resources, records events and notifies
// the registry. It implements project.Notifier.
type Hub struct {
	registry *Registry
	resolver *Resolver
	builder  *Builder
	events   EventLog
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// Compile-time interface check.
var _ project.Notifier = (*Hub)(nil)

// HubOptions configures NewHub.
type HubOptions struct {
	Store   project.DataStore
	Events  EventLog
	Views   ViewOptions
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// NewHub wires a registry, resolver and builder over one store. A nil
// event log defaults to an unbounded in-memory one.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := opts.Events
	if events == nil {
		events = NewMemoryEventLog(0)
	}

	registry := NewRegistry(logger, opts.Metrics)
	builder := NewBuilder(opts.Store, events, opts.Views, opts.Metrics)
	builder.SetCounter(registry)
	registry.SetReader(builder)

	return &Hub{
		registry: registry,
		resolver: NewResolver(opts.Store),
		builder:  builder,
		events:   events,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// Registry returns the subscription registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Publish fans one committed mutation out to every affected resource.
func (h *Hub) Publish(ctx context.Context, m project.Mutation) error {
	if m.Entity == nil {
		return fmt.Errorf("%w: mutation without entity", project.ErrInvariantViolation)
	}
	h.metrics.ObserveMutation(string(m.EntityType), string(m.Action))

	uris, err := h.resolver.AffectedResources(ctx, m)
	if err != nil {
		h.logger.Error("resolving affected resources",
			"entity", m.EntityType, "action", m.Action, "err", err)
		return fmt.Errorf("resolving affected resources: %w", err)
	}

	changes := Diff(m.OldEntity, m.Entity)
	now := timestamp()
	for _, uri := range uris {
		if prdID, ok := eventsKey(uri); ok {
			evt := newEvent(m, changes, now)
			if err := h.events.Append(ctx, prdID, evt); err != nil {
				h.logger.Warn("appending event", "uri", uri, "err", err)
			}
		}
		h.registry.NotifyAll(uri, Update{
			Type:       UpdateType(m.Action),
			URI:        uri,
			EntityType: m.EntityType,
			Entity:     m.Entity,
			OldEntity:  m.OldEntity,
			Timestamp:  now,
			Changes:    changes,
		})
	}
	h.logger.Debug("mutation published",
		"entity", m.EntityType, "id", m.Entity.EntityID(), "action", m.Action, "uris", len(uris))
	return nil
}

// eventsKey returns the PRD id of an events:// URI.
func eventsKey(uri string) (string, bool) {
	if schemeOf(uri) != SchemeEvents {
		return "", false
	}
	u, err := ParseURI(uri)
	if err != nil {
		return "", false
	}
	return u.Key, true
}

func newEvent(m project.Mutation, changes Changes, now string) Event {
	actor := m.Actor
	if actor == "" {
		actor = "system"
	}
	data := map[string]any{
		"entityId": m.Entity.EntityID(),
		"entity":   m.Entity,
	}
	if changes != nil {
		data["changes"] = changes
	}
	return Event{
		ID:        "evt_" + uuid.NewString(),
		Timestamp: now,
		Type:      fmt.Sprintf("%s.%s", m.EntityType, m.Action),
		Actor:     actor,
		Data:      data,
	}
}

// Subscribe registers cb and pushes the current view. See Registry.Subscribe.
func (h *Hub) Subscribe(ctx context.Context, uri, subscriberID string, cb Callback) error {
	if _, err := ParseURI(uri); err != nil {
		return err
	}
	return h.registry.Subscribe(ctx, uri, subscriberID, cb)
}

// Unsubscribe removes every entry for (uri, subscriberID).
func (h *Hub) Unsubscribe(uri, subscriberID string) {
	h.registry.Unsubscribe(uri, subscriberID)
}

// UnsubscribeAll removes every subscription held by subscriberID, as when a
// client session ends.
func (h *Hub) UnsubscribeAll(subscriberID string) int {
	n := h.registry.RemoveSubscriber(subscriberID)
	if n > 0 {
		h.logger.Debug("subscriber removed", "subscriber", subscriberID, "subscriptions", n)
	}
	return n
}

// Read builds the current view of uri.
func (h *Hub) Read(ctx context.Context, uri string) (any, error) {
	return h.builder.Read(ctx, uri)
}

// Resources lists the concrete resources.
func (h *Hub) Resources(ctx context.Context) ([]ResourceInfo, error) {
	return h.builder.Resources(ctx)
}

// Templates lists the resource templates.
func (h *Hub) Templates() []TemplateInfo {
	return Templates()
}

// Refresh rebuilds every subscribed view and pushes it as a refresh update.
// Views that can no longer be built are pushed as deleted with the error.
func (h *Hub) Refresh(ctx context.Context) {
	for _, uri := range h.registry.URIs() {
		now := timestamp()
		data, err := h.builder.Read(ctx, uri)
		if err != nil {
			h.logger.Info("subscribed view no longer readable", "uri", uri, "err", err)
			h.registry.NotifyAll(uri, Update{
				Type:      UpdateType(project.ActionDeleted),
				URI:       uri,
				Timestamp: now,
				Error:     err.Error(),
			})
			continue
		}
		h.registry.NotifyAll(uri, Update{
			Type:      UpdateRefresh,
			URI:       uri,
			Data:      data,
			Timestamp: now,
		})
	}
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.registry.Close()
}
