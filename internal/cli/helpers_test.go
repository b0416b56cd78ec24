package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/plughost/pkg/capability"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns its stdout
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := GetRootCmd()
	resetFlags(cmd)
	t.Cleanup(func() { resetFlags(cmd) })

	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return output.String(), err
}

// resetFlags restores every flag to its default so commands do not leak
// state into each other
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// setupHome points HOME at a temp dir so the default config path and data
// dir stay inside the test
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func createPluginDir(t *testing.T, pluginsDir, name, pkg string) {
	t.Helper()
	dir := filepath.Join(pluginsDir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	if pkg != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(pkg), 0644))
	}
}

func noopRegister(context.Context, capability.Messenger) error { return nil }

func ping(context.Context, []any) (any, error) { return "pong", nil }

// demoModule exposes one standard scheme and one web API on it
func demoModule(name, scheme string) *capability.Module {
	return capability.NewModule(name).
		WithProtocols(&capability.ProtocolDescriptor{
			Scheme:        scheme,
			IsStandardURL: true,
			Register:      noopRegister,
		}).
		WithWebAPIs(&capability.WebAPIDescriptor{
			Name: scheme + "API",
			Manifest: capability.Manifest{
				"ping":           {Type: capability.MethodPromise, Handler: ping},
				"_with_cb_watch": {Type: capability.MethodReadable, Handler: ping},
			},
		})
}

func registerDemo(t *testing.T, name, scheme string) {
	t.Helper()
	err := RegisterBuiltin(name, func(ctx context.Context, n, dir string) (*capability.Module, error) {
		return demoModule(n, scheme), nil
	})
	require.NoError(t, err)
}
