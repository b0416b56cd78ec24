package capability

import (
	"reflect"
	"testing"

	"github.com/harun/plughost/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_GetAllInfo(t *testing.T) {
	t.Run("memoizes and ignores late modules", func(t *testing.T) {
		src := &mutableSource{modules: []*Module{
			NewModule("beaker-plugin-a").WithProtocols(proto("a", true)),
		}}
		ix := NewIndex(src, zerolog.Nop())

		first, err := ix.GetAllInfo(KeyProtocols)
		require.NoError(t, err)
		require.Len(t, first, 1)

		src.modules = append(src.modules, NewModule("beaker-plugin-b").WithProtocols(proto("b", false)))

		second, err := ix.GetAllInfo(KeyProtocols)
		require.NoError(t, err)
		assert.Len(t, second, 1)
		assert.Equal(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(second).Pointer())
	})

	t.Run("flattens in discovery then declaration order", func(t *testing.T) {
		ix := NewIndex(StaticModules{
			NewModule("one").WithProtocols(proto("a", false), proto("b", false)),
			NewModule("none"),
			NewModule("two").WithProtocols(proto("c", false)),
		}, zerolog.Nop())

		protocols, err := ix.Protocols()
		require.NoError(t, err)

		var schemes []string
		for _, p := range protocols {
			schemes = append(schemes, p.Scheme)
		}
		assert.Equal(t, []string{"a", "b", "c"}, schemes)
	})

	t.Run("scalar export is wrapped", func(t *testing.T) {
		m := NewModule("scalar")
		m.Exports[KeyProtocols] = proto("solo", false)

		all, err := NewIndex(StaticModules{m}, zerolog.Nop()).GetAllInfo(KeyProtocols)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "solo", all[0].(*ProtocolDescriptor).Scheme)
	})

	t.Run("value and mixed sequences", func(t *testing.T) {
		m := NewModule("mixed")
		m.Exports[KeyProtocols] = []any{proto("a", false), *proto("b", false)}

		all, err := NewIndex(StaticModules{m}, zerolog.Nop()).GetAllInfo(KeyProtocols)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("value slices are copied", func(t *testing.T) {
		protos := []ProtocolDescriptor{*proto("a", false)}
		apis := []WebAPIDescriptor{{Name: "api", Scheme: "a"}}
		m := NewModule("values")
		m.Exports[KeyProtocols] = protos
		m.Exports[KeyWebAPIs] = apis
		ix := NewIndex(StaticModules{m}, zerolog.Nop())

		first, err := ix.Protocols()
		require.NoError(t, err)
		firstAPIs, err := ix.WebAPIs()
		require.NoError(t, err)

		protos[0].Scheme = "zzz"
		apis[0].Name = "changed"

		second, err := ix.Protocols()
		require.NoError(t, err)
		secondAPIs, err := ix.WebAPIs()
		require.NoError(t, err)

		assert.Equal(t, "a", first[0].Scheme)
		assert.Equal(t, "a", second[0].Scheme)
		assert.Equal(t, "api", firstAPIs[0].Name)
		assert.Equal(t, "api", secondAPIs[0].Name)
	})

	t.Run("no modules yields empty sequence", func(t *testing.T) {
		all, err := NewIndex(StaticModules{}, zerolog.Nop()).GetAllInfo(KeyWebAPIs)
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)
	})

	t.Run("nil source", func(t *testing.T) {
		all, err := NewIndex(nil, zerolog.Nop()).GetAllInfo(KeyProtocols)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("drops invalid descriptors", func(t *testing.T) {
		m := NewModule("messy")
		m.Exports[KeyProtocols] = []any{
			proto("ok", false),
			&ProtocolDescriptor{Scheme: ""},
			&ProtocolDescriptor{Scheme: "bad:", Register: noopRegister},
			&ProtocolDescriptor{Scheme: "noreg"},
			&WebAPIDescriptor{Name: "wrongkind"},
			"garbage",
			nil,
			(*ProtocolDescriptor)(nil),
		}

		mt := metrics.NewMetrics()
		ix := NewIndex(StaticModules{m}, zerolog.Nop(), WithMetrics(mt))

		protocols, err := ix.Protocols()
		require.NoError(t, err)
		require.Len(t, protocols, 1)
		assert.Equal(t, "ok", protocols[0].Scheme)
		assert.Equal(t, 7.0, testutil.ToFloat64(mt.DescriptorsRejectedTotal.WithLabelValues("protocols")))
	})

	t.Run("records cache metrics", func(t *testing.T) {
		mt := metrics.NewMetrics()
		ix := NewIndex(StaticModules{}, zerolog.Nop(), WithMetrics(mt))

		_, _ = ix.GetAllInfo(KeyProtocols)
		_, _ = ix.GetAllInfo(KeyProtocols)
		_, _ = ix.GetAllInfo(KeyProtocols)

		assert.Equal(t, 1.0, testutil.ToFloat64(mt.CapabilityCacheMissesTotal.WithLabelValues("protocols")))
		assert.Equal(t, 2.0, testutil.ToFloat64(mt.CapabilityCacheHitsTotal.WithLabelValues("protocols")))
	})
}

func TestIndex_Backfill(t *testing.T) {
	t.Run("single protocol sets scheme", func(t *testing.T) {
		api := &WebAPIDescriptor{Name: "api"}
		ix := NewIndex(StaticModules{
			NewModule("p").WithProtocols(proto("s", false)).WithWebAPIs(api),
		}, zerolog.Nop())

		apis, err := ix.WebAPIs()
		require.NoError(t, err)
		require.Len(t, apis, 1)
		assert.Equal(t, "s", apis[0].Scheme)
		assert.Empty(t, apis[0].Schemes)
		assert.Empty(t, api.Scheme, "module value is not mutated")
	})

	t.Run("several protocols set schemes", func(t *testing.T) {
		ix := NewIndex(StaticModules{
			NewModule("p").
				WithProtocols(proto("a", false), proto("b", false), proto("a", false)).
				WithWebAPIs(&WebAPIDescriptor{Name: "api"}),
		}, zerolog.Nop())

		apis, err := ix.WebAPIs()
		require.NoError(t, err)
		require.Len(t, apis, 1)
		assert.Empty(t, apis[0].Scheme)
		assert.Equal(t, []string{"a", "b"}, apis[0].Schemes)
	})

	t.Run("explicit attribution is kept", func(t *testing.T) {
		explicit := &WebAPIDescriptor{Name: "api", Schemes: []string{"z"}}
		ix := NewIndex(StaticModules{
			NewModule("p").WithProtocols(proto("a", false)).WithWebAPIs(explicit),
		}, zerolog.Nop())

		apis, err := ix.WebAPIs()
		require.NoError(t, err)
		assert.Same(t, explicit, apis[0])
	})

	t.Run("no protocol to attribute to", func(t *testing.T) {
		ix := NewIndex(StaticModules{
			NewModule("p").WithWebAPIs(&WebAPIDescriptor{Name: "orphan"}, &WebAPIDescriptor{Name: "tagged", Scheme: "x"}),
		}, zerolog.Nop())

		apis, err := ix.WebAPIs()
		require.NoError(t, err)
		require.Len(t, apis, 1)
		assert.Equal(t, "tagged", apis[0].Name)
	})

	t.Run("every api has attribution", func(t *testing.T) {
		ix := NewIndex(StaticModules{
			NewModule("one").WithProtocols(proto("a", false)).WithWebAPIs(&WebAPIDescriptor{Name: "x"}),
			NewModule("two").WithProtocols(proto("b", false), proto("c", false)).WithWebAPIs(&WebAPIDescriptor{Name: "y"}),
			NewModule("three").WithWebAPIs(&WebAPIDescriptor{Name: "z"}),
		}, zerolog.Nop())

		apis, err := ix.WebAPIs()
		require.NoError(t, err)
		require.Len(t, apis, 2)
		for _, api := range apis {
			assert.True(t, api.Scheme != "" || len(api.Schemes) > 0, api.Name)
		}
	})
}

func TestIndex_Conflicts(t *testing.T) {
	modules := func() StaticModules {
		return StaticModules{
			NewModule("first").WithProtocols(proto("dat", false)),
			NewModule("second").WithProtocols(proto("dat", true)),
		}
	}

	t.Run("warn keeps both", func(t *testing.T) {
		ix := NewIndex(modules(), zerolog.Nop())

		protocols, err := ix.Protocols()
		require.NoError(t, err)
		assert.Len(t, protocols, 2)
	})

	t.Run("reject fails and caches nothing", func(t *testing.T) {
		ix := NewIndex(modules(), zerolog.Nop(), WithConflictPolicy(ConflictReject))

		_, err := ix.Protocols()
		assert.ErrorIs(t, err, ErrSchemeConflict)
		assert.Contains(t, err.Error(), "dat")
		assert.False(t, ix.Cached(KeyProtocols))
	})
}

func TestIndex_Warm(t *testing.T) {
	t.Run("warms every key", func(t *testing.T) {
		ix := NewIndex(StaticModules{}, zerolog.Nop())
		assert.False(t, ix.Cached(KeyProtocols))

		require.NoError(t, ix.Warm())
		assert.True(t, ix.Cached(KeyProtocols))
		assert.True(t, ix.Cached(KeyWebAPIs))
	})

	t.Run("warms selected keys", func(t *testing.T) {
		ix := NewIndex(StaticModules{}, zerolog.Nop())
		require.NoError(t, ix.Warm(KeyWebAPIs))
		assert.False(t, ix.Cached(KeyProtocols))
		assert.True(t, ix.Cached(KeyWebAPIs))
	})

	t.Run("propagates conflicts", func(t *testing.T) {
		ix := NewIndex(StaticModules{
			NewModule("a").WithProtocols(proto("x", false)),
			NewModule("b").WithProtocols(proto("x", false)),
		}, zerolog.Nop(), WithConflictPolicy(ConflictReject))

		assert.ErrorIs(t, ix.Warm(), ErrSchemeConflict)
	})
}

func TestParseConflictPolicy(t *testing.T) {
	p, err := ParseConflictPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ConflictWarn, p)

	p, err = ParseConflictPolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, ConflictReject, p)

	_, err = ParseConflictPolicy("merge")
	assert.Error(t, err)
}
