package simpleingest

import (
	"fmt"
	"slices"
	"sort"
)

// Registration places a driver in one registry pool.
type Registration struct {
	Category DriverCategory
	Driver   Driver
}

// Preview registers d in the preview pool
func Preview(d Driver) Registration { return Registration{Category: CategoryPreview, Driver: d} }

// Metadata registers d in the metadata pool
func Metadata(d Driver) Registration { return Registration{Category: CategoryMetadata, Driver: d} }

// Upload registers d in the upload pool
func Upload(d Driver) Registration { return Registration{Category: CategoryUpload, Driver: d} }

// Convert registers d in the convert pool
func Convert(d Driver) Registration { return Registration{Category: CategoryConvert, Driver: d} }

// Registry is the static driver catalog. It is built once at startup and
// never mutated afterwards, so lookups need no locking.
type Registry struct {
	pools map[DriverCategory]map[string]Driver
}

// NewRegistry validates and indexes the registrations.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := &Registry{pools: map[DriverCategory]map[string]Driver{
		CategoryPreview:  {},
		CategoryMetadata: {},
		CategoryUpload:   {},
		CategoryConvert:  {},
	}}

	for _, reg := range regs {
		pool, ok := r.pools[reg.Category]
		if !ok {
			return nil, fmt.Errorf("unknown driver category %q", reg.Category)
		}
		if reg.Driver == nil {
			return nil, fmt.Errorf("nil driver in %s pool", reg.Category)
		}
		name := reg.Driver.Name()
		if err := validateDriver(reg.Driver); err != nil {
			return nil, &DriverError{Category: reg.Category, Driver: name, Op: "register", Err: err}
		}
		if _, dup := pool[name]; dup {
			return nil, fmt.Errorf("%s driver %q registered twice", reg.Category, name)
		}
		pool[name] = reg.Driver
	}

	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(regs ...Registration) *Registry {
	r, err := NewRegistry(regs...)
	if err != nil {
		panic(err)
	}
	return r
}

func validateDriver(d Driver) error {
	inputs := d.SupportedInputs()
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no input mode declared", ErrUnsupportedDriverInput)
	}
	for _, mode := range inputs {
		if !implementsMode(d, mode) {
			return fmt.Errorf("%w: %s declared but not implemented", ErrUnsupportedDriverInput, mode)
		}
	}
	return nil
}

func implementsMode(d Driver, mode InputMode) bool {
	switch mode {
	case InputStream:
		_, ok := d.(StreamProcessor)
		return ok
	case InputContent:
		_, ok := d.(ContentProcessor)
		return ok
	case InputSource:
		_, ok := d.(SourceProcessor)
		return ok
	case InputPath:
		_, ok := d.(PathProcessor)
		return ok
	}
	return false
}

// Select returns the driver registered under name in the category pool.
func (r *Registry) Select(category DriverCategory, name string) (Driver, bool) {
	if r == nil || name == "" {
		return nil, false
	}
	d, ok := r.pools[category][name]
	return d, ok
}

// Names lists the drivers of a pool in sorted order.
func (r *Registry) Names(category DriverCategory) []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.pools[category]))
	for name := range r.pools[category] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supports reports whether d declares and implements the input mode.
func Supports(d Driver, mode InputMode) bool {
	if d == nil {
		return false
	}
	return slices.Contains(d.SupportedInputs(), mode) && implementsMode(d, mode)
}

// SupportsOutputSize reports whether d advertises the output size.
func SupportsOutputSize(d Driver, size OutputSize) bool {
	if d == nil {
		return false
	}
	return slices.Contains(d.SupportedOutputSizes(), size)
}
