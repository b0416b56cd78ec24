package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startupModules(failing error) StaticModules {
	return StaticModules{
		NewModule("p").
			WithProtocols(
				proto("dat", true),
				&ProtocolDescriptor{Scheme: "bad", Register: func(context.Context, Messenger) error { return failing }},
			).
			WithWebAPIs(&WebAPIDescriptor{Name: "datArchive", Scheme: "dat"}),
	}
}

func TestStartup_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("host order", func(t *testing.T) {
		host := &fakeHost{}
		ix := NewIndex(StaticModules{
			NewModule("p").
				WithProtocols(&ProtocolDescriptor{Scheme: "dat", IsStandardURL: true, Register: func(ctx context.Context, m Messenger) error {
					return m.Send(ctx, "registered")
				}}).
				WithWebAPIs(&WebAPIDescriptor{Name: "datArchive"}),
		}, zerolog.Nop())

		s := NewStartup(ix, host, nil, zerolog.Nop(), StartupConfig{})
		require.NoError(t, s.Run(ctx))

		assert.Equal(t, []string{
			"schemes",
			"ready",
			"send:registered",
			"export:datArchive",
			"export:_with_cb_datArchive",
			"export:_with_async_cb_datArchive",
			"export:_export_as_static_obj_datArchive",
		}, host.Calls())
		assert.True(t, s.Index().Cached(KeyProtocols))
		assert.True(t, s.Index().Cached(KeyWebAPIs))
		assert.NotNil(t, s.Registrar())

		manifests, err := s.Lookup().GetWebAPIManifests("dat:")
		require.NoError(t, err)
		assert.Contains(t, manifests, "datArchive")
	})

	t.Run("activation failure skips web apis by default", func(t *testing.T) {
		boom := errors.New("boom")
		host := &fakeHost{}

		err := NewStartup(NewIndex(startupModules(boom), zerolog.Nop()), host, nil, zerolog.Nop(), StartupConfig{}).Run(ctx)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, host.exports)
	})

	t.Run("continue policy still exports", func(t *testing.T) {
		boom := errors.New("boom")
		host := &fakeHost{}

		err := NewStartup(NewIndex(startupModules(boom), zerolog.Nop()), host, nil, zerolog.Nop(),
			StartupConfig{ContinueOnActivationFailure: true}).Run(ctx)

		var actErr *ActivationError
		require.ErrorAs(t, err, &actErr)
		assert.Equal(t, "bad", actErr.Scheme)
		assert.Len(t, host.exports, 4)
	})

	t.Run("continue policy joins export errors", func(t *testing.T) {
		boom := errors.New("boom")
		exportErr := errors.New("export failed")
		host := &fakeHost{exportErr: exportErr}

		err := NewStartup(NewIndex(startupModules(boom), zerolog.Nop()), host, nil, zerolog.Nop(),
			StartupConfig{ContinueOnActivationFailure: true}).Run(ctx)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, exportErr)
	})

	t.Run("ready failure", func(t *testing.T) {
		notReady := errors.New("window closed")
		host := &fakeHost{readyErr: notReady}

		err := NewStartup(NewIndex(startupModules(nil), zerolog.Nop()), host, nil, zerolog.Nop(), StartupConfig{}).Run(ctx)
		assert.ErrorIs(t, err, notReady)
		assert.Equal(t, []string{"schemes", "ready"}, host.Calls())
	})

	t.Run("warm failure stops before the host is touched", func(t *testing.T) {
		host := &fakeHost{}
		ix := NewIndex(StaticModules{
			NewModule("a").WithProtocols(proto("x", false)),
			NewModule("b").WithProtocols(proto("x", false)),
		}, zerolog.Nop(), WithConflictPolicy(ConflictReject))

		err := NewStartup(ix, host, nil, zerolog.Nop(), StartupConfig{}).Run(ctx)
		assert.ErrorIs(t, err, ErrSchemeConflict)
		assert.Empty(t, host.Calls())
	})
}
