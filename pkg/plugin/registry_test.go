package plugin

import (
	"testing"

	"github.com/harun/plughost/pkg/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("keeps load order", func(t *testing.T) {
		r := NewRegistry()
		for _, name := range []string{"beaker-plugin-c", "beaker-plugin-a", "beaker-plugin-b"} {
			require.NoError(t, r.Register(&Record{Name: name, Module: capability.NewModule(name), Metadata: FallbackMetadata(name)}))
		}

		assert.Equal(t, []string{"beaker-plugin-c", "beaker-plugin-a", "beaker-plugin-b"}, r.Names())
		assert.Equal(t, 3, r.Count())

		modules := r.Modules()
		require.Len(t, modules, 3)
		assert.Equal(t, "beaker-plugin-c", modules[0].Name)

		records := r.All()
		assert.False(t, records[0].LoadedAt.IsZero())
	})

	t.Run("metadata keyed by name", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(&Record{
			Name:     "beaker-plugin-dat",
			Module:   capability.NewModule("dat"),
			Metadata: Metadata{Name: "dat", Version: "1.0.0", Status: StatusInstalled},
		}))

		meta := r.Metadata()
		assert.Equal(t, "1.0.0", meta["beaker-plugin-dat"].Version)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		r := NewRegistry()
		rec := &Record{Name: "beaker-plugin-dat", Module: capability.NewModule("dat")}
		require.NoError(t, r.Register(rec))
		assert.Error(t, r.Register(&Record{Name: "beaker-plugin-dat", Module: capability.NewModule("dat")}))
	})

	t.Run("rejects incomplete records", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(nil))
		assert.Error(t, r.Register(&Record{Name: "x"}))
		assert.Error(t, r.Register(&Record{Module: capability.NewModule("x")}))
	})

	t.Run("get", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(&Record{Name: "beaker-plugin-dat", Module: capability.NewModule("dat")}))

		rec, ok := r.Get("beaker-plugin-dat")
		assert.True(t, ok)
		assert.Equal(t, "dat", rec.Module.Name)

		_, ok = r.Get("beaker-plugin-other")
		assert.False(t, ok)
	})

	t.Run("implements module source", func(t *testing.T) {
		var _ capability.ModuleSource = NewRegistry()
	})
}
