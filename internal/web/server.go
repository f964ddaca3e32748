package web

import "context"

// Server is the web surface as the app sees it.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// NoopServer stands in when the app runs headless, e.g. in tests.
type NoopServer struct{}

func (NoopServer) Start(context.Context) error { return nil }
func (NoopServer) Stop() error                 { return nil }

var (
	_ Server = NoopServer{}
	_ Server = (*HTTPServer)(nil)
)
