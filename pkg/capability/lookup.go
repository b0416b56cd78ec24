package capability

import "strings"

// Lookup answers which web API manifests belong to a scheme
type Lookup struct {
	index *Index
}

// NewLookup creates a manifest lookup
func NewLookup(index *Index) *Lookup {
	return &Lookup{index: index}
}

// FindProtocol returns the protocol registered for scheme. When several
// protocols share a scheme the last registered one wins.
func (l *Lookup) FindProtocol(scheme string) (*ProtocolDescriptor, error) {
	protocols, err := l.index.Protocols()
	if err != nil {
		return nil, err
	}

	var found *ProtocolDescriptor
	for _, p := range protocols {
		if p.Scheme == scheme {
			found = p
		}
	}
	return found, nil
}

// GetWebAPIManifests returns name -> manifest for every web API attributed
// to scheme whose visibility matches the scheme's protocol. Colons in scheme
// are ignored, so "foo:" and "foo" are equivalent. An unknown scheme yields
// an empty map.
func (l *Lookup) GetWebAPIManifests(scheme string) (map[string]Manifest, error) {
	manifests := make(map[string]Manifest)
	scheme = strings.ReplaceAll(scheme, ":", "")

	proto, err := l.FindProtocol(scheme)
	if err != nil {
		return nil, err
	}
	if proto == nil {
		return manifests, nil
	}

	apis, err := l.index.WebAPIs()
	if err != nil {
		return nil, err
	}

	for _, api := range apis {
		if api.IsInternal == proto.IsInternal && api.MatchesScheme(scheme) {
			manifests[api.Name] = api.Manifest
		}
	}
	return manifests, nil
}
