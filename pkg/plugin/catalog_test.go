package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/harun/plughost/pkg/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("load registered factory", func(t *testing.T) {
		c := NewCatalog()
		require.NoError(t, c.Register("beaker-plugin-dat", func(_ context.Context, name, dir string) (*capability.Module, error) {
			return &capability.Module{Exports: map[capability.CapabilityKey]any{}}, nil
		}))

		module, err := c.Load(ctx, "beaker-plugin-dat", "/plugins/beaker-plugin-dat")
		require.NoError(t, err)
		assert.Equal(t, "beaker-plugin-dat", module.Name, "empty module name defaults to plugin name")
	})

	t.Run("unknown plugin", func(t *testing.T) {
		_, err := NewCatalog().Load(ctx, "beaker-plugin-missing", "")
		assert.ErrorIs(t, err, ErrUnknownPlugin)
	})

	t.Run("factory error", func(t *testing.T) {
		c := NewCatalog()
		boom := errors.New("boom")
		require.NoError(t, c.Register("beaker-plugin-bad", func(context.Context, string, string) (*capability.Module, error) {
			return nil, boom
		}))

		_, err := c.Load(ctx, "beaker-plugin-bad", "")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nil module", func(t *testing.T) {
		c := NewCatalog()
		require.NoError(t, c.Register("beaker-plugin-nil", func(context.Context, string, string) (*capability.Module, error) {
			return nil, nil
		}))

		_, err := c.Load(ctx, "beaker-plugin-nil", "")
		assert.Error(t, err)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		c := NewCatalog()
		m := capability.NewModule("beaker-plugin-dat")
		require.NoError(t, c.Static(m))
		assert.Error(t, c.Static(m))
	})

	t.Run("invalid registration", func(t *testing.T) {
		c := NewCatalog()
		assert.Error(t, c.Register("", func(context.Context, string, string) (*capability.Module, error) { return nil, nil }))
		assert.Error(t, c.Register("x", nil))
		assert.Error(t, c.Static(nil))
	})

	t.Run("names are sorted", func(t *testing.T) {
		c := NewCatalog()
		require.NoError(t, c.Static(capability.NewModule("beaker-plugin-b")))
		require.NoError(t, c.Static(capability.NewModule("beaker-plugin-a")))

		assert.Equal(t, []string{"beaker-plugin-a", "beaker-plugin-b"}, c.Names())
	})
}
