package capability

import (
	"fmt"
	"strings"
)

// normalize coerces a module export into a flat descriptor sequence.
// Invalid elements are reported and left out; valid ones keep declaration order.
func normalize(key CapabilityKey, value any) ([]Descriptor, []error) {
	var raw []any

	switch v := value.(type) {
	case nil:
		return nil, nil
	case []Descriptor:
		for _, d := range v {
			raw = append(raw, d)
		}
	case []*ProtocolDescriptor:
		for _, d := range v {
			raw = append(raw, d)
		}
	case []ProtocolDescriptor:
		for i := range v {
			d := v[i]
			raw = append(raw, &d)
		}
	case []*WebAPIDescriptor:
		for _, d := range v {
			raw = append(raw, d)
		}
	case []WebAPIDescriptor:
		for i := range v {
			d := v[i]
			raw = append(raw, &d)
		}
	case []any:
		raw = v
	case ProtocolDescriptor:
		raw = []any{&v}
	case WebAPIDescriptor:
		raw = []any{&v}
	default:
		raw = []any{v}
	}

	var (
		out  []Descriptor
		errs []error
	)
	for i, item := range raw {
		d, err := asDescriptor(item)
		if err == nil {
			err = validate(key, d)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %w", key, i, err))
			continue
		}
		out = append(out, d)
	}
	return out, errs
}

func asDescriptor(item any) (Descriptor, error) {
	switch d := item.(type) {
	case *ProtocolDescriptor:
		if d == nil {
			return nil, fmt.Errorf("nil protocol descriptor")
		}
		return d, nil
	case ProtocolDescriptor:
		return &d, nil
	case *WebAPIDescriptor:
		if d == nil {
			return nil, fmt.Errorf("nil web API descriptor")
		}
		return d, nil
	case WebAPIDescriptor:
		return &d, nil
	case nil:
		return nil, fmt.Errorf("nil descriptor")
	default:
		return nil, fmt.Errorf("unsupported descriptor type %T", item)
	}
}

func validate(key CapabilityKey, d Descriptor) error {
	if d.Kind() != key {
		return fmt.Errorf("%s descriptor exported under %s", d.Kind(), key)
	}

	switch v := d.(type) {
	case *ProtocolDescriptor:
		if v.Scheme == "" {
			return fmt.Errorf("protocol scheme cannot be empty")
		}
		if strings.Contains(v.Scheme, ":") {
			return fmt.Errorf("protocol scheme %q must not contain ':'", v.Scheme)
		}
		if v.Register == nil {
			return fmt.Errorf("protocol %s: register routine cannot be nil", v.Scheme)
		}
	case *WebAPIDescriptor:
		if v.Name == "" {
			return fmt.Errorf("web API name cannot be empty")
		}
	}
	return nil
}
