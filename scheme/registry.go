package scheme

import (
	"fmt"

	"github.com/chainflip-io/multisig-engine/ids"
)

// Registry is the closed tagged union of supported schemes at the
// Ceremony Manager boundary (spec §9 "Dynamic dispatch over schemes").
// Within a Runner the scheme is fixed for the ceremony's lifetime; the
// Manager looks it up once per incoming request.
type Registry struct {
	schemes map[ids.SchemeTag]Scheme
}

// NewRegistry builds a Registry from the given schemes, keyed by their own
// Tag().
func NewRegistry(schemes ...Scheme) *Registry {
	m := make(map[ids.SchemeTag]Scheme, len(schemes))
	for _, s := range schemes {
		m[s.Tag()] = s
	}
	return &Registry{schemes: m}
}

// Get looks up a scheme by tag.
func (r *Registry) Get(tag ids.SchemeTag) (Scheme, error) {
	s, ok := r.schemes[tag]
	if !ok {
		return nil, fmt.Errorf("scheme: unsupported scheme tag %s", tag)
	}
	return s, nil
}

// Tags returns every registered scheme tag, used by cmd/engine to spin up
// one Ceremony Manager per scheme.
func (r *Registry) Tags() []ids.SchemeTag {
	tags := make([]ids.SchemeTag, 0, len(r.schemes))
	for t := range r.schemes {
		tags = append(tags, t)
	}
	return tags
}
