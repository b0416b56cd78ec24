package plugin

import (
	"context"
	"encoding/gob"
	"errors"
	"net/rpc"

	"github.com/harun/plughost/pkg/capability"
	"github.com/hashicorp/go-plugin"
)

// Handshake is used to verify that the plugin and host are compatible
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PLUGHOST_PLUGIN",
	MagicCookieValue: "plughost-module-v1",
}

// ModulePluginName is the name the module plugin is dispensed under
const ModulePluginName = "module"

// PluginMap is the map of plugins we can dispense
var PluginMap = map[string]plugin.Plugin{
	ModulePluginName: &ModulePlugin{},
}

func init() {
	// argument and metadata values cross the wire as interfaces
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// RemoteModule is implemented by out-of-process plugins
type RemoteModule interface {
	// Describe returns the plugin's declarations
	Describe() (*ModuleDescription, error)
	// Register runs the setup routine of the protocol with scheme
	Register(ctx context.Context, scheme string, messenger capability.Messenger) error
	// Invoke calls a function of a web API manifest
	Invoke(ctx context.Context, api, function string, args []any) (any, error)
}

// ModuleDescription is the wire form of a module's declarations
type ModuleDescription struct {
	Protocols []ProtocolInfo
	WebAPIs   []WebAPIInfo
}

// ProtocolInfo is the wire form of a protocol descriptor
type ProtocolInfo struct {
	Scheme        string
	IsStandardURL bool
	IsInternal    bool
}

// WebAPIInfo is the wire form of a web API descriptor
type WebAPIInfo struct {
	Name       string
	Functions  []FunctionInfo
	Methods    map[string]any
	Scheme     string
	Schemes    []string
	IsInternal bool
}

// FunctionInfo is the wire form of a manifest entry
type FunctionInfo struct {
	Key        string
	Convention string
	Type       string
}

// ModulePlugin is the implementation of plugin.Plugin for RPC
type ModulePlugin struct {
	Impl RemoteModule
}

func (p *ModulePlugin) Server(b *plugin.MuxBroker) (interface{}, error) {
	return &ModuleRPCServer{Impl: p.Impl, broker: b}, nil
}

func (p *ModulePlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &ModuleRPCClient{client: c, broker: b}, nil
}

// Serve runs impl as a plugin process. It is called from the plugin's main.
func Serve(impl RemoteModule) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			ModulePluginName: &ModulePlugin{Impl: impl},
		},
	})
}

// ErrorResp carries a remote error as text; errors do not survive gob
type ErrorResp struct {
	Error string
}

func (r *ErrorResp) set(err error) {
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *ErrorResp) err() error {
	if r.Error == "" {
		return nil
	}
	return errors.New(r.Error)
}

// DescribeResp is the response for Describe RPC call
type DescribeResp struct {
	Description *ModuleDescription
	ErrorResp
}

// RegisterArgs are the arguments for Register RPC call
type RegisterArgs struct {
	Scheme      string
	MessengerID uint32
}

// InvokeArgs are the arguments for Invoke RPC call
type InvokeArgs struct {
	API      string
	Function string
	Args     []any
}

// InvokeResp is the response for Invoke RPC call
type InvokeResp struct {
	Result any
	ErrorResp
}

// SendArgs are the arguments for Messenger.Send RPC call
type SendArgs struct {
	Channel string
	Args    []any
}

// ModuleRPCServer is the RPC server that ModuleRPCClient talks to
type ModuleRPCServer struct {
	Impl   RemoteModule
	broker *plugin.MuxBroker
}

func (s *ModuleRPCServer) Describe(args interface{}, resp *DescribeResp) error {
	desc, err := s.Impl.Describe()
	resp.Description = desc
	resp.set(err)
	return nil
}

// Register dials the host messenger served on the broker and hands it to
// the plugin. The connection stays open for the life of the process.
func (s *ModuleRPCServer) Register(args *RegisterArgs, resp *ErrorResp) error {
	conn, err := s.broker.Dial(args.MessengerID)
	if err != nil {
		return err
	}

	messenger := &MessengerRPCClient{client: rpc.NewClient(conn)}
	resp.set(s.Impl.Register(context.Background(), args.Scheme, messenger))
	return nil
}

func (s *ModuleRPCServer) Invoke(args *InvokeArgs, resp *InvokeResp) error {
	result, err := s.Impl.Invoke(context.Background(), args.API, args.Function, args.Args)
	resp.Result = result
	resp.set(err)
	return nil
}

// ModuleRPCClient is the RPC client that talks to ModuleRPCServer
type ModuleRPCClient struct {
	client *rpc.Client
	broker *plugin.MuxBroker
}

func (c *ModuleRPCClient) Describe() (*ModuleDescription, error) {
	var resp DescribeResp
	if err := c.client.Call("Plugin.Describe", new(interface{}), &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	if resp.Description == nil {
		return &ModuleDescription{}, nil
	}
	return resp.Description, nil
}

// Register serves messenger on a fresh broker stream for the duration of
// the remote setup routine and afterwards.
func (c *ModuleRPCClient) Register(ctx context.Context, scheme string, messenger capability.Messenger) error {
	id := c.broker.NextId()
	go c.broker.AcceptAndServe(id, &MessengerRPCServer{Impl: messenger})

	var resp ErrorResp
	if err := c.client.Call("Plugin.Register", &RegisterArgs{Scheme: scheme, MessengerID: id}, &resp); err != nil {
		return err
	}
	return resp.err()
}

func (c *ModuleRPCClient) Invoke(ctx context.Context, api, function string, args []any) (any, error) {
	var resp InvokeResp
	err := c.client.Call("Plugin.Invoke", &InvokeArgs{API: api, Function: function, Args: args}, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// MessengerRPCServer exposes the host messenger to a plugin process
type MessengerRPCServer struct {
	Impl capability.Messenger
}

func (s *MessengerRPCServer) Send(args *SendArgs, resp *ErrorResp) error {
	resp.set(s.Impl.Send(context.Background(), args.Channel, args.Args...))
	return nil
}

// MessengerRPCClient is the plugin side of the host messenger
type MessengerRPCClient struct {
	client *rpc.Client
}

func (c *MessengerRPCClient) Send(ctx context.Context, channel string, args ...any) error {
	var resp ErrorResp
	if err := c.client.Call("Plugin.Send", &SendArgs{Channel: channel, Args: args}, &resp); err != nil {
		return err
	}
	return resp.err()
}
