package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/cartwin/pkg/log"
)

// Server is anything that runs until its context is cancelled.
type Server interface {
	Start(ctx context.Context) error
}

// Func adapts a blocking function to Server.
type Func func(ctx context.Context) error

func (f Func) Start(ctx context.Context) error { return f(ctx) }

// Manager manages the lifecycle of all servers. The first one to fail stops
// the others.
type Manager struct {
	servers []Server
}

func NewManager(servers ...Server) *Manager {
	return &Manager{servers: servers}
}

// Add registers another server. It must be called before Start.
func (m *Manager) Add(s Server) {
	m.servers = append(m.servers, s)
}

// Len returns the number of registered servers.
func (m *Manager) Len() int {
	return len(m.servers)
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
