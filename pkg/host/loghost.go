package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/harun/plughost/pkg/capability"
	"github.com/rs/zerolog"
)

// Message is a message sent through the host messenger
type Message struct {
	Channel string
	Args    []any
}

// Export is a channel published through ExportAPI
type Export struct {
	Functions capability.Manifest
	Methods   capability.MethodMetadata
}

// LogHost is an in-memory host that records and logs every primitive call.
// Messages are forwarded to an optional downstream messenger.
type LogHost struct {
	logger     zerolog.Logger
	downstream capability.Messenger

	mu       sync.Mutex
	ready    bool
	schemes  []string
	exports  map[string]Export
	messages []Message
}

// LogHostOption configures a LogHost
type LogHostOption func(*LogHost)

// WithMessenger forwards sent messages to m
func WithMessenger(m capability.Messenger) LogHostOption {
	return func(h *LogHost) { h.downstream = m }
}

// NewLogHost creates a new log host
func NewLogHost(logger zerolog.Logger, opts ...LogHostOption) *LogHost {
	h := &LogHost{
		logger:  logger.With().Str("component", "log-host").Logger(),
		exports: make(map[string]Export),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterStandardSchemes implements capability.SchemeRegistry. Schemes can
// only be registered before the host is ready.
func (h *LogHost) RegisterStandardSchemes(schemes []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ready {
		return fmt.Errorf("standard schemes must be registered before the host is ready")
	}
	h.schemes = append(h.schemes, schemes...)

	h.logger.Info().Strs("schemes", schemes).Msg("Standard schemes registered")
	return nil
}

// ExportAPI implements capability.APIExporter
func (h *LogHost) ExportAPI(channel string, fns capability.Manifest, methods capability.MethodMetadata) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.exports[channel]; exists {
		return fmt.Errorf("channel %s already exported", channel)
	}
	h.exports[channel] = Export{Functions: fns, Methods: methods}

	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	sort.Strings(names)

	h.logger.Debug().
		Str("channel", channel).
		Strs("functions", names).
		Msg("API exported")
	return nil
}

// WaitReady implements capability.ReadyWaiter. The log host is ready as
// soon as it is asked.
func (h *LogHost) WaitReady(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	h.ready = true
	h.mu.Unlock()

	h.logger.Debug().Msg("Host ready")
	return nil
}

// Send implements capability.Messenger
func (h *LogHost) Send(ctx context.Context, channel string, args ...any) error {
	h.mu.Lock()
	h.messages = append(h.messages, Message{Channel: channel, Args: args})
	h.mu.Unlock()

	h.logger.Debug().
		Str("channel", channel).
		Interface("args", args).
		Msg("Message sent")

	if h.downstream != nil {
		return h.downstream.Send(ctx, channel, args...)
	}
	return nil
}

// Call invokes an exported function
func (h *LogHost) Call(ctx context.Context, channel, function string, args []any) (any, error) {
	h.mu.Lock()
	export, ok := h.exports[channel]
	h.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("channel %s not exported", channel)
	}
	spec, ok := export.Functions[function]
	if !ok || spec.Handler == nil {
		return nil, fmt.Errorf("function %s not found on channel %s", function, channel)
	}
	return spec.Handler(ctx, args)
}

// Ready reports whether WaitReady has been called
func (h *LogHost) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// Schemes returns the registered standard schemes
func (h *LogHost) Schemes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.schemes...)
}

// Channels returns the exported channel names in lexical order
func (h *LogHost) Channels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	channels := make([]string, 0, len(h.exports))
	for channel := range h.exports {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	return channels
}

// Exported returns what was exported on channel
func (h *LogHost) Exported(channel string) (Export, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	export, ok := h.exports[channel]
	return export, ok
}

// Messages returns every message sent so far
func (h *LogHost) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.messages...)
}
