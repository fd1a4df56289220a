package pcm

import (
	"context"
	"fmt"
)

// Descriptor is a resolved leaf/wrapper specification handed to Build by a
// compositor (e.g. the YAML pipeline loader in package pipeline). It names a
// backend type and its options independently of whatever document format
// the compositor parsed it from.
type Descriptor struct {
	Name    string
	Type    string            // "hw", "file", "plug", "null", ...
	Options map[string]string // backend-specific leaf options (e.g. device, path)
	Slave   *Descriptor       // nil for leaf factories
}

// Factory constructs an Endpoint for one named backend type. slave is nil
// for leaf factories and non-nil for wrapping plugins, already open.
type Factory func(stream Stream, d *Descriptor, slave *Endpoint) (*Endpoint, error)

// registry is the set of factories known to Build, keyed by Descriptor.Type.
var registry = map[string]Factory{}

// Register installs a backend factory under name, overwriting any previous
// registration. Reference backends register themselves from their own
// package's init(), so importing a backend package for its side effect is
// what makes its type name resolvable.
func Register(name string, f Factory) {
	registry[name] = f
}

// Build opens a pipeline from a descriptor, recursively constructing the
// slave endpoint (if any) before the wrapping endpoint: slave construction
// must succeed before the wrapper's state is allocated, and on wrapper
// failure the slave must be closed exactly once.
func Build(stream Stream, d *Descriptor) (*Endpoint, error) {
	if d == nil {
		return nil, newErrParam("build", KindBadValue, "descriptor")
	}
	factory, ok := registry[d.Type]
	if !ok {
		return nil, newErrParam("build", KindBadValue, "type")
	}

	var slave *Endpoint
	if d.Slave != nil {
		var err error
		slave, err = Build(stream, d.Slave)
		if err != nil {
			return nil, fmt.Errorf("build slave %q: %w", d.Slave.Type, err)
		}
	}

	ep, err := factory(stream, d, slave)
	if err != nil {
		if slave != nil {
			_ = slave.Close(context.Background())
		}
		return nil, newErrWrap("build", KindIO, err)
	}
	return ep, nil
}
