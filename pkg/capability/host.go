package capability

import "context"

// SchemeRegistry registers schemes that need standard URL parsing.
// It must be called before the host signals readiness.
type SchemeRegistry interface {
	RegisterStandardSchemes(schemes []string) error
}

// APIExporter exposes a set of functions over the host's remote-call boundary
type APIExporter interface {
	ExportAPI(channel string, fns Manifest, methods MethodMetadata) error
}

// ReadyWaiter blocks until the host application is ready
type ReadyWaiter interface {
	WaitReady(ctx context.Context) error
}

// Host bundles every host primitive the startup sequence needs
type Host interface {
	SchemeRegistry
	APIExporter
	ReadyWaiter
	Messenger
}
