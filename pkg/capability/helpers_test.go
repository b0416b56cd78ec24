package capability

import (
	"context"
	"sync"
)

type mutableSource struct {
	modules []*Module
}

func (s *mutableSource) Modules() []*Module { return s.modules }

func noopRegister(context.Context, Messenger) error { return nil }

func proto(scheme string, standard bool) *ProtocolDescriptor {
	return &ProtocolDescriptor{Scheme: scheme, IsStandardURL: standard, Register: noopRegister}
}

func fn(name string) Function {
	return func(context.Context, []any) (any, error) { return name, nil }
}

type exported struct {
	channel string
	fns     Manifest
	methods MethodMetadata
}

// fakeHost records every host primitive call in order
type fakeHost struct {
	mu        sync.Mutex
	calls     []string
	schemes   [][]string
	exports   []exported
	messages  []string
	schemeErr error
	readyErr  error
	exportErr error
}

func (h *fakeHost) RegisterStandardSchemes(schemes []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "schemes")
	h.schemes = append(h.schemes, schemes)
	return h.schemeErr
}

func (h *fakeHost) ExportAPI(channel string, fns Manifest, methods MethodMetadata) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "export:"+channel)
	h.exports = append(h.exports, exported{channel: channel, fns: fns, methods: methods})
	return h.exportErr
}

func (h *fakeHost) WaitReady(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "ready")
	return h.readyErr
}

func (h *fakeHost) Send(ctx context.Context, channel string, args ...any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "send:"+channel)
	h.messages = append(h.messages, channel)
	return nil
}

func (h *fakeHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}
