package resourceserver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foldset/gateway-core/configviews"
	"github.com/foldset/gateway-core/mcp"
	"github.com/foldset/gateway-core/mechanisms/evm"
	"github.com/foldset/gateway-core/mechanisms/svm"
	"github.com/foldset/gateway-core/routes"
	"github.com/foldset/gateway-core/types"
)

// CacheTTL bounds how long a built Server is reused before its four source
// views are re-fetched and the server is rebuilt, mirroring Python
// HttpServerManager's CACHE_TTL_MS.
const CacheTTL = 30 * time.Second

// Manager builds and caches the resource server, re-fetching its four
// source views (host config, restrictions, payment methods, facilitator)
// concurrently whenever the cache has expired. Adapted from
// server.py's HttpServerManager.
type Manager struct {
	hostConfig     *configviews.HostConfig
	restrictions   *configviews.Restrictions
	paymentMethods *configviews.PaymentMethods
	facilitator    *configviews.Facilitator

	mu      sync.Mutex
	cached  *Server
	builtAt time.Time
}

// NewManager builds a Manager over the four config views.
func NewManager(hostConfig *configviews.HostConfig, restrictions *configviews.Restrictions, paymentMethods *configviews.PaymentMethods, facilitator *configviews.Facilitator) *Manager {
	return &Manager{
		hostConfig:     hostConfig,
		restrictions:   restrictions,
		paymentMethods: paymentMethods,
		facilitator:    facilitator,
	}
}

// Get returns the cached Server, rebuilding it if the TTL has elapsed. A nil
// Server (no error) means the worker is unconfigured for this host — either
// HostConfig or the facilitator config is absent — and the caller should
// pass the request through.
func (m *Manager) Get(ctx context.Context) (*Server, error) {
	m.mu.Lock()
	if m.cached != nil && time.Since(m.builtAt) < CacheTTL {
		cached := m.cached
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	var (
		hostConfig     *types.HostConfig
		restrictions   []types.Restriction
		paymentMethods []types.PaymentMethod
		facilitator    *types.FacilitatorConfig
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { hostConfig, err = m.hostConfig.Get(gctx); return })
	g.Go(func() (err error) { restrictions, err = m.restrictions.Get(gctx); return })
	g.Go(func() (err error) { paymentMethods, err = m.paymentMethods.Get(gctx); return })
	g.Go(func() (err error) { facilitator, err = m.facilitator.Get(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if hostConfig == nil || facilitator == nil {
		return nil, nil
	}

	contentRoutes := routes.BuildRoutesConfig(restrictions, paymentMethods, hostConfig.TermsOfServiceURL)
	if hostConfig.MCPEndpoint != "" {
		mcpRoutes := mcp.BuildRoutesConfig(restrictions, paymentMethods, hostConfig.MCPEndpoint, hostConfig.TermsOfServiceURL)
		contentRoutes.Merge(mcpRoutes)
	}

	server, err := New(NewHTTPFacilitator(*facilitator), contentRoutes, evm.NewServer(), svm.NewServer())
	if err != nil {
		return nil, err
	}
	if err := server.Initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cached = server
	m.builtAt = time.Now()
	m.mu.Unlock()

	return server, nil
}
