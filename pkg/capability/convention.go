package capability

import (
	"fmt"
	"sort"
	"strings"
)

// CallingConvention determines how a manifest function is exported and invoked
type CallingConvention int

const (
	// ConventionUnspecified derives the convention from the entry name prefix
	ConventionUnspecified CallingConvention = iota
	ConventionPlain
	ConventionCallback
	ConventionAsyncCallback
	ConventionStaticObject
)

// Name prefixes recognised when an entry has no explicit convention.
// The same prefixes are prepended to the API name to form export channels.
const (
	CallbackPrefix      = "_with_cb_"
	AsyncCallbackPrefix = "_with_async_cb_"
	StaticObjectPrefix  = "_export_as_static_obj_"
)

// Conventions lists the export buckets in export order
var Conventions = []CallingConvention{
	ConventionPlain,
	ConventionCallback,
	ConventionAsyncCallback,
	ConventionStaticObject,
}

func (c CallingConvention) String() string {
	switch c {
	case ConventionUnspecified:
		return "unspecified"
	case ConventionPlain:
		return "plain"
	case ConventionCallback:
		return "callback"
	case ConventionAsyncCallback:
		return "async-callback"
	case ConventionStaticObject:
		return "static-object"
	default:
		return fmt.Sprintf("convention(%d)", int(c))
	}
}

// Prefix returns the channel/name prefix of the convention; plain has none
func (c CallingConvention) Prefix() string {
	switch c {
	case ConventionCallback:
		return CallbackPrefix
	case ConventionAsyncCallback:
		return AsyncCallbackPrefix
	case ConventionStaticObject:
		return StaticObjectPrefix
	default:
		return ""
	}
}

// ParseConvention parses the String form of a convention
func ParseConvention(s string) (CallingConvention, error) {
	for _, c := range append([]CallingConvention{ConventionUnspecified}, Conventions...) {
		if c.String() == s {
			return c, nil
		}
	}
	return ConventionUnspecified, fmt.Errorf("unknown calling convention: %q", s)
}

// ChannelName returns the export channel for an API under a convention
func ChannelName(apiName string, c CallingConvention) string {
	return c.Prefix() + apiName
}

// Classify resolves the convention of a manifest entry and its exported name.
// An explicit convention keeps the key unchanged; otherwise the name prefix
// decides and is stripped. Keys with no recognised prefix are plain.
func Classify(key string, spec FunctionSpec) (CallingConvention, string) {
	if spec.Convention != ConventionUnspecified {
		return spec.Convention, key
	}
	for _, c := range []CallingConvention{ConventionCallback, ConventionAsyncCallback, ConventionStaticObject} {
		prefix := c.Prefix()
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return c, key[len(prefix):]
		}
	}
	return ConventionPlain, key
}

// Buckets holds one manifest per calling convention
type Buckets map[CallingConvention]Manifest

// Partition splits a manifest into the four convention buckets.
// Every bucket is present, possibly empty. Entries are visited in sorted key
// order so name collisions inside a bucket resolve the same way every time.
func Partition(manifest Manifest) Buckets {
	buckets := make(Buckets, len(Conventions))
	for _, c := range Conventions {
		buckets[c] = Manifest{}
	}

	keys := make([]string, 0, len(manifest))
	for key := range manifest {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		spec := manifest[key]
		c, name := Classify(key, spec)
		bucket, ok := buckets[c]
		if !ok {
			// out-of-range explicit conventions are exported as plain
			c = ConventionPlain
			bucket = buckets[c]
		}
		spec.Convention = c
		bucket[name] = spec
	}

	return buckets
}

// DescribeManifest documents an API's export channels: channel name to
// function name to method type. It uses the same classification as export.
func DescribeManifest(api *WebAPIDescriptor) map[string]map[string]MethodType {
	doc := make(map[string]map[string]MethodType, len(Conventions))
	for c, bucket := range Partition(api.Manifest) {
		fns := make(map[string]MethodType, len(bucket))
		for name, spec := range bucket {
			fns[name] = spec.Type
		}
		doc[ChannelName(api.Name, c)] = fns
	}
	return doc
}
