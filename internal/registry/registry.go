// Package registry maps CDS trigger point names to their handlers.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/pama/internal/cds"
	"github.com/hyperjump/pama/internal/metrics"
	"go.uber.org/zap"
)

// Trigger point names registered by Default.
const (
	// OrderSelect rates the draft while a study and reasons are being picked.
	OrderSelect = "pama/order-select"
	// OrderSign rates the draft again when the order is signed.
	OrderSign = "pama/order-sign"
)

// ErrDuplicateTriggerPoint is returned by New when two entries share a name.
var ErrDuplicateTriggerPoint = errors.New("duplicate trigger point")

// Entry registers a handler under a trigger point name.
type Entry struct {
	Name    string
	Handler cds.TriggerHandler
}

// Registry is built once and only read afterwards.
type Registry struct {
	handlers map[string]cds.TriggerHandler
	names    []string
}

// New builds a registry from entries, rejecting empty names and duplicates.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{handlers: make(map[string]cds.TriggerHandler, len(entries))}
	for _, e := range entries {
		if e.Name == "" || e.Handler == nil {
			return nil, fmt.Errorf("invalid registry entry %q", e.Name)
		}
		if _, exists := r.handlers[e.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTriggerPoint, e.Name)
		}
		r.handlers[e.Name] = e.Handler
		r.names = append(r.names, e.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Default registers the PAMA handler for order-select and, with the order-sign trigger,
// for order-sign.
func Default(logger *zap.Logger, m *metrics.Collector) *Registry {
	base := cds.PamaHandler{Logger: logger, Metrics: m}
	sign := base
	sign.ExplicitTrigger = cds.TriggerOrderSign

	r, err := New(
		Entry{Name: OrderSelect, Handler: base},
		Entry{Name: OrderSign, Handler: sign},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (cds.TriggerHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered trigger point names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// WithTrigger returns the names of trigger points waiting on trigger.
func (r *Registry) WithTrigger(trigger string) []string {
	var out []string
	for _, name := range r.names {
		if r.handlers[name].NeedExplicitTrigger() == trigger {
			out = append(out, name)
		}
	}
	return out
}

// Hook returns the CDS Hooks hook name of a trigger point ("pama/order-sign" → "order-sign").
func Hook(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
