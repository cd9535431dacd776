package levin

import (
	"context"
	"slices"
	"sync"

	"github.com/ethpandaops/levin/pkg/portable"
	"github.com/sirupsen/logrus"
)

// MinCommandID is the lowest command id a handler may be registered under.
const MinCommandID uint32 = 1000

// InvokeHandler answers a request that expects a response. Returning a nil
// section and a nil error suppresses the response entirely. Returning a
// *ReturnCodeError answers with that code.
type InvokeHandler func(ctx context.Context, conn *Conn, req *portable.Section) (*portable.Section, error)

// NotifyHandler consumes a one-way request.
type NotifyHandler func(ctx context.Context, conn *Conn, req *portable.Section) error

// Handler is a registered command handler. Exactly one of Invoke and Notify
// is set.
type Handler struct {
	ID     uint32
	Name   string
	Invoke InvokeHandler
	Notify NotifyHandler
}

// Registry maps command ids to handlers. It is shared by every connection of
// a node and is expected to be populated before connections are accepted.
type Registry struct {
	log      logrus.FieldLogger
	mu       sync.RWMutex
	handlers map[uint32]*Handler
}

// NewRegistry creates an empty registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		log:      log.WithField("component", "levin_registry"),
		handlers: make(map[uint32]*Handler),
	}
}

// RegisterInvoke registers an invocation handler for id.
func (r *Registry) RegisterInvoke(id uint32, name string, h InvokeHandler) error {
	return r.register(&Handler{ID: id, Name: name, Invoke: h})
}

// RegisterNotify registers a notification handler for id.
func (r *Registry) RegisterNotify(id uint32, name string, h NotifyHandler) error {
	return r.register(&Handler{ID: id, Name: name, Notify: h})
}

// register keeps the first handler registered under an id. A duplicate is
// logged and reported, never installed.
func (r *Registry) register(h *Handler) error {
	if h.ID < MinCommandID {
		return &FrameError{Err: ErrInvalidCommandID, Value: uint64(h.ID)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.handlers[h.ID]; ok {
		r.log.WithFields(logrus.Fields{
			"command":  h.ID,
			"existing": existing.Name,
			"rejected": h.Name,
		}).Warn("Handler already registered for command, keeping the existing one")

		return ErrHandlerExists
	}

	r.handlers[h.ID] = h

	r.log.WithFields(logrus.Fields{
		"command": h.ID,
		"name":    h.Name,
	}).Debug("Registered handler")

	return nil
}

// Lookup returns the handler registered for id.
func (r *Registry) Lookup(id uint32) (*Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[id]

	return h, ok
}

// Unregister removes the handler for id.
func (r *Registry) Unregister(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handlers, id)
}

// Commands returns the registered command ids in ascending order.
func (r *Registry) Commands() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint32, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}
