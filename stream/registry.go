package stream

import (
	"fmt"
	"sort"

	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/telemetry"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds the streams of a process by name.
type Registry struct {
	streams *xsync.MapOf[string, ReadWriteStream]
}

var _ telemetry.StreamLister = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{streams: xsync.NewMapOf[string, ReadWriteStream]()}
}

// Register adds s under its name. Registering a second stream with the
// same name is a conflict.
func (r *Registry) Register(s ReadWriteStream) error {
	if _, loaded := r.streams.LoadOrStore(s.Name(), s); loaded {
		return &model.ConflictError{Reason: fmt.Sprintf("stream %s already registered", s.Name())}
	}
	return nil
}

// Get returns the stream registered under name.
func (r *Registry) Get(name string) (ReadWriteStream, bool) {
	return r.streams.Load(name)
}

// Remove drops name from the registry. The stream itself is untouched.
func (r *Registry) Remove(name string) {
	r.streams.Delete(name)
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.streams.Size())
	r.streams.Range(func(name string, _ ReadWriteStream) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// ListStreams implements telemetry.StreamLister.
func (r *Registry) ListStreams() []string {
	return r.Names()
}

// GetStream implements telemetry.StreamLister. Streams that cannot report
// totals are skipped by returning nil.
func (r *Registry) GetStream(name string) telemetry.StatsProvider {
	s, ok := r.streams.Load(name)
	if !ok {
		return nil
	}
	if sp, ok := s.(telemetry.StatsProvider); ok {
		return sp
	}
	return nil
}
