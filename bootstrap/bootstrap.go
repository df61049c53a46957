// Package bootstrap wires a Dispatcher together from nothing but an API
// key: it fetches Redis credentials from the control-plane bootstrap
// endpoint (or accepts pre-fetched ones), builds the tenant-scoped KV store,
// and assembles the cached configuration views, resource-server manager,
// and telemetry sinks a Dispatcher needs. Grounded in
// original_source/python/core/foldset/store.py (fetch_redis_credentials,
// create_redis_store) and __init__.py (WorkerCore.from_options's
// process-singleton cache).
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/foldset/gateway-core/configviews"
	"github.com/foldset/gateway-core/dispatch"
	"github.com/foldset/gateway-core/kvstore"
	"github.com/foldset/gateway-core/resourceserver"
	"github.com/foldset/gateway-core/telemetry"
)

// Credentials is the {url, token, tenantId} triple returned by the
// bootstrap endpoint (spec.md §6).
type Credentials struct {
	URL      string
	Token    string
	TenantID string
}

// FetchCredentials calls GET {apiBaseURL}/v1/config/redis with the
// operator's API key and decodes the {data:{url,token,tenantId}} envelope.
// A non-200 response is fatal — the worker cannot run without a store.
func FetchCredentials(ctx context.Context, apiBaseURL, apiKey string) (Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBaseURL+"/v1/config/redis", nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("building credentials request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("fetching redis credentials: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading credentials response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Credentials{}, fmt.Errorf("failed to fetch redis credentials: %d %s", resp.StatusCode, body)
	}

	var envelope struct {
		Data struct {
			URL      string `json:"url"`
			Token    string `json:"token"`
			TenantID string `json:"tenantId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Credentials{}, fmt.Errorf("decoding credentials response: %w", err)
	}
	return Credentials{URL: envelope.Data.URL, Token: envelope.Data.Token, TenantID: envelope.Data.TenantID}, nil
}

// Options configures Core construction; RedisCredentials, when set, bypasses
// FetchCredentials entirely (spec.md §6, "bypasses bootstrap").
type Options struct {
	APIKey           string
	RedisCredentials *Credentials
	Platform         string
	SDKVersion       string
	APIBaseURL       string
	Version          string

	// APIKeySecret, when non-empty, builds an APIKeyValidator onto Core so
	// the host can gate access to the gateway itself with operator-issued
	// JWT API keys, independent of the per-route x402 payment flow.
	APIKeySecret []byte
}

// Core is the fully-wired worker: the Dispatcher plus the underlying KV
// connection, which callers should Close on shutdown.
type Core struct {
	Dispatcher      *dispatch.Dispatcher
	APIKeyValidator *APIKeyValidator
	store           *kvstore.RedisStore
}

// Close releases the underlying Redis connection pool.
func (c *Core) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

var (
	singletonMu sync.Mutex
	singleton   *Core
)

// FromOptions returns the process-wide singleton Core, building it on the
// first call and returning the cached instance afterward — mirroring
// WorkerCore.from_options's global _cached_core, first-caller-wins.
func FromOptions(ctx context.Context, opts Options) (*Core, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		return singleton, nil
	}

	core, err := New(ctx, opts)
	if err != nil {
		return nil, err
	}
	singleton = core
	return singleton, nil
}

// New builds a fresh Core, independent of the process singleton — useful
// for tests or multi-tenant hosts that need more than one worker.
func New(ctx context.Context, opts Options) (*Core, error) {
	apiBaseURL := opts.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = telemetry.APIBaseURL
	}

	creds := opts.RedisCredentials
	if creds == nil {
		fetched, err := FetchCredentials(ctx, apiBaseURL, opts.APIKey)
		if err != nil {
			return nil, err
		}
		creds = &fetched
	}

	redisStore, err := kvstore.NewRedisStore(creds.URL, creds.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	store := kvstore.NewTenantStore(redisStore, creds.TenantID)

	hostConfig := configviews.NewHostConfig(store)
	restrictions := configviews.NewRestrictions(store)
	paymentMethods := configviews.NewPaymentMethods(store)
	bots := configviews.NewBots(store)
	facilitator := configviews.NewFacilitator(store)

	servers := resourceserver.NewManager(hostConfig, restrictions, paymentMethods, facilitator)
	telemetryClient := telemetry.New(apiBaseURL, opts.APIKey)

	platform := opts.Platform
	if platform == "" {
		platform = "unknown"
	}
	sdkVersion := opts.SDKVersion
	if sdkVersion == "" {
		sdkVersion = "unknown"
	}

	d := &dispatch.Dispatcher{
		HostConfig:     hostConfig,
		Restrictions:   restrictions,
		PaymentMethods: paymentMethods,
		Bots:           bots,
		Servers:        servers,
		Events:         telemetryClient,
		Errors:         telemetryClient,
		Platform:       platform,
		SDKVersion:     sdkVersion,
		Version:        opts.Version,
	}

	core := &Core{Dispatcher: d, store: redisStore}
	if len(opts.APIKeySecret) > 0 {
		core.APIKeyValidator = NewAPIKeyValidator(opts.APIKeySecret)
	}
	return core, nil
}

// resetSingletonForTest clears the process-wide Core. Test-only.
func resetSingletonForTest() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singleton = nil
}
