// Package modeler implements the mimetype-dispatched deep-indexing stage of
// the refresh pipeline: each modeler registers against a
// mimetype-prefix glob ("text/html" matches both "text/html" and "text/"),
// and the refresh pipeline invokes every matching modeler for a
// FileGroup's primary mimetype during its deep-model phase. Uses an
// explicit Registry type rather than package-level global state, a
// preference for struct-held dependencies over globals.
package modeler

import (
	"context"
	"strings"
	"sync"

	"github.com/wrolpi/archivaid/internal/model"
)

// Func models one FileGroup, mutating it (and any related rows via the
// store handles closed over at registration time) in place. The refresh
// pipeline marks the group deep_indexed=true once its matching Funcs have
// run, recording a FailureNote when one of them returned an error.
type Func func(ctx context.Context, group *model.FileGroup) error

type entry struct {
	prefix string
	fn     Func
}

// Registry holds the ordered list of registered modelers, matched against
// a FileGroup's mimetype by prefix.
type Registry struct {
	mu      sync.Mutex
	entries []entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterModeler appends fn to the registry under mimetypePrefix. Order of
// registration is the order of invocation for a FileGroup matching
// multiple modelers.
func (r *Registry) RegisterModeler(mimetypePrefix string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry{prefix: mimetypePrefix, fn: fn})
}

// ModelersFor returns every registered Func whose prefix matches mimetype,
// in registration order. A prefix matches if mimetype equals the prefix
// exactly or starts with it (so "text/" matches "text/html",
// "text/plain", etc).
func (r *Registry) ModelersFor(mimetype string) []Func {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Func

	for _, e := range r.entries {
		if mimetype == e.prefix || strings.HasPrefix(mimetype, e.prefix) {
			matched = append(matched, e.fn)
		}
	}

	return matched
}

// Run invokes every modeler matching group.Mimetype, in order, stopping at
// the first error. The caller (internal/refresh) is responsible for
// recording FailureNote on error.
func (r *Registry) Run(ctx context.Context, group *model.FileGroup) error {
	for _, fn := range r.ModelersFor(group.Mimetype) {
		if err := fn(ctx, group); err != nil {
			return err
		}
	}

	return nil
}
