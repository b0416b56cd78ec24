package capability

import "fmt"

// moduleSchemes returns the valid protocol schemes a module declares
func moduleSchemes(m *Module) []string {
	value, ok := m.Export(KeyProtocols)
	if !ok {
		return nil
	}
	protocols, _ := normalize(KeyProtocols, value)
	schemes := make([]string, 0, len(protocols))
	for _, d := range protocols {
		schemes = append(schemes, d.(*ProtocolDescriptor).Scheme)
	}
	return schemes
}

// backfillScheme attributes a web API to its owning module's protocols.
// Descriptors that already name a scheme or schemes are returned unchanged;
// others are copied so the module's own value is never mutated.
func backfillScheme(api *WebAPIDescriptor, owner *Module) (*WebAPIDescriptor, error) {
	if api.Scheme != "" || len(api.Schemes) > 0 {
		return api, nil
	}

	schemes := moduleSchemes(owner)
	switch len(schemes) {
	case 0:
		return nil, fmt.Errorf("web API %s: plugin %s declares no protocol to attribute it to", api.Name, owner.Name)
	case 1:
		filled := api.clone()
		filled.Scheme = schemes[0]
		return filled, nil
	default:
		filled := api.clone()
		filled.Schemes = uniqueOrdered(schemes)
		return filled, nil
	}
}

func uniqueOrdered(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
