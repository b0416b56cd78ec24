// Package builtin holds the plugins compiled into the plughost binary
package builtin

import (
	"context"
	"fmt"

	"github.com/harun/plughost/pkg/capability"
	"github.com/harun/plughost/pkg/plugin"
)

const (
	// EchoName is the plugin name of the echo plugin
	EchoName = "beaker-plugin-echo"
	// EchoScheme is the URL scheme the echo plugin registers
	EchoScheme = "echo"
	// EchoReadyChannel receives a message when the echo protocol is registered
	EchoReadyChannel = "echo:ready"
)

// Register adds every built-in plugin through register
func Register(register func(name string, factory plugin.Factory) error) error {
	for name, factory := range map[string]plugin.Factory{
		EchoName: Echo,
	} {
		if err := register(name, factory); err != nil {
			return fmt.Errorf("failed to register built-in plugin %s: %w", name, err)
		}
	}
	return nil
}

// Echo builds the echo plugin: an "echo" standard scheme and an "echo" web
// API that returns its arguments.
func Echo(ctx context.Context, name, dir string) (*capability.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return capability.NewModule(name).
		WithProtocols(&capability.ProtocolDescriptor{
			Scheme:        EchoScheme,
			IsStandardURL: true,
			Register: func(ctx context.Context, m capability.Messenger) error {
				return m.Send(ctx, EchoReadyChannel, EchoScheme)
			},
		}).
		WithWebAPIs(&capability.WebAPIDescriptor{
			Name: EchoScheme,
			Manifest: capability.Manifest{
				"echo": {Type: capability.MethodPromise, Handler: echo},
				"count": {
					Convention: capability.ConventionCallback,
					Type:       capability.MethodSync,
					Handler:    count,
				},
				"_export_as_static_obj_info": {Type: capability.MethodSync, Handler: info(name)},
			},
		}), nil
}

func echo(_ context.Context, args []any) (any, error) {
	return args, nil
}

func count(_ context.Context, args []any) (any, error) {
	return len(args), nil
}

func info(name string) capability.Function {
	return func(context.Context, []any) (any, error) {
		return map[string]any{"name": name, "scheme": EchoScheme}, nil
	}
}
