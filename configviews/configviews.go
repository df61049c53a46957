// Package configviews instantiates the five concrete CachedView schemas the
// dispatcher depends on: host config, restrictions, payment methods, bots,
// and the facilitator. Each wraps cache.View with the deserializer spec.md
// §4.2 describes; unknown restriction tags fail loudly rather than being
// silently dropped.
package configviews

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/foldset/gateway-core/cache"
	"github.com/foldset/gateway-core/kvstore"
	"github.com/foldset/gateway-core/types"
)

// HostConfig is the CachedView<HostConfig> over the "host-config" key.
type HostConfig struct {
	view *cache.View[*types.HostConfig]
}

// NewHostConfig builds the host-config view. Missing entry falls back to
// nil, which callers treat as "worker unconfigured for this host".
func NewHostConfig(store kvstore.Store) *HostConfig {
	return &HostConfig{
		view: cache.New[*types.HostConfig](store, "host-config", nil, deserializeHostConfig),
	}
}

func (h *HostConfig) Get(ctx context.Context) (*types.HostConfig, error) {
	return h.view.Get(ctx)
}

func deserializeHostConfig(raw string) (*types.HostConfig, error) {
	var wire struct {
		Host              string  `json:"host"`
		APIProtectionMode *string `json:"apiProtectionMode"`
		MCPEndpoint       string  `json:"mcpEndpoint"`
		TermsOfServiceURL string  `json:"termsOfServiceUrl"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("deserializing host-config: %w", err)
	}
	mode := types.ProtectionModeBots
	if wire.APIProtectionMode != nil {
		mode = types.APIProtectionMode(*wire.APIProtectionMode)
	}
	return &types.HostConfig{
		Host:              wire.Host,
		APIProtectionMode: mode,
		MCPEndpoint:       wire.MCPEndpoint,
		TermsOfServiceURL: wire.TermsOfServiceURL,
	}, nil
}

// Restrictions is the CachedView<[]Restriction> over the "restrictions" key.
type Restrictions struct {
	view *cache.View[[]types.Restriction]
}

func NewRestrictions(store kvstore.Store) *Restrictions {
	return &Restrictions{
		view: cache.New[[]types.Restriction](store, "restrictions", nil, deserializeRestrictions),
	}
}

func (r *Restrictions) Get(ctx context.Context) ([]types.Restriction, error) {
	return r.view.Get(ctx)
}

func deserializeRestrictions(raw string) ([]types.Restriction, error) {
	var wire []struct {
		Type        string  `json:"type"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		Scheme      string  `json:"scheme"`
		Path        string  `json:"path"`
		HTTPMethod  string  `json:"httpMethod"`
		Method      string  `json:"method"`
		Name        string  `json:"name"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("deserializing restrictions: %w", err)
	}

	out := make([]types.Restriction, 0, len(wire))
	for _, w := range wire {
		switch types.RestrictionType(w.Type) {
		case types.RestrictionWeb:
			out = append(out, types.Restriction{
				Type: types.RestrictionWeb, Description: w.Description, Price: w.Price,
				Scheme: w.Scheme, Path: w.Path,
			})
		case types.RestrictionAPI:
			out = append(out, types.Restriction{
				Type: types.RestrictionAPI, Description: w.Description, Price: w.Price,
				Scheme: w.Scheme, Path: w.Path, HTTPMethod: w.HTTPMethod,
			})
		case types.RestrictionMCP:
			out = append(out, types.Restriction{
				Type: types.RestrictionMCP, Description: w.Description, Price: w.Price,
				Scheme: w.Scheme, Method: w.Method, Name: w.Name,
			})
		default:
			return nil, fmt.Errorf("unknown restriction type: %q", w.Type)
		}
	}
	return out, nil
}

// PaymentMethods is the CachedView<[]PaymentMethod> over "payment-methods".
type PaymentMethods struct {
	view *cache.View[[]types.PaymentMethod]
}

func NewPaymentMethods(store kvstore.Store) *PaymentMethods {
	return &PaymentMethods{
		view: cache.New[[]types.PaymentMethod](store, "payment-methods", nil, deserializePaymentMethods),
	}
}

func (p *PaymentMethods) Get(ctx context.Context) ([]types.PaymentMethod, error) {
	return p.view.Get(ctx)
}

func deserializePaymentMethods(raw string) ([]types.PaymentMethod, error) {
	var out []types.PaymentMethod
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("deserializing payment-methods: %w", err)
	}
	return out, nil
}

// Bots is the CachedView<[]Bot> over "bots". User agents are lowercased at
// load time; Match performs a substring scan in list order.
type Bots struct {
	view *cache.View[[]types.Bot]
}

func NewBots(store kvstore.Store) *Bots {
	return &Bots{
		view: cache.New[[]types.Bot](store, "bots", nil, deserializeBots),
	}
}

func deserializeBots(raw string) ([]types.Bot, error) {
	var wire []struct {
		UserAgent string `json:"user_agent"`
		Force200  bool   `json:"force_200"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("deserializing bots: %w", err)
	}
	out := make([]types.Bot, 0, len(wire))
	for _, w := range wire {
		out = append(out, types.Bot{UserAgent: strings.ToLower(w.UserAgent), Force200: w.Force200})
	}
	return out, nil
}

// Match returns the first bot whose UserAgent is a substring of userAgent
// (case-insensitive), or nil if none matched. List order is authoritative.
func (b *Bots) Match(ctx context.Context, userAgent string) (*types.Bot, error) {
	bots, err := b.view.Get(ctx)
	if err != nil {
		return nil, err
	}
	ua := strings.ToLower(userAgent)
	for i := range bots {
		if strings.Contains(ua, bots[i].UserAgent) {
			return &bots[i], nil
		}
	}
	return nil, nil
}

// Facilitator is the CachedView<*FacilitatorConfig> over "facilitator".
type Facilitator struct {
	view *cache.View[*types.FacilitatorConfig]
}

func NewFacilitator(store kvstore.Store) *Facilitator {
	return &Facilitator{
		view: cache.New[*types.FacilitatorConfig](store, "facilitator", nil, deserializeFacilitator),
	}
}

func (f *Facilitator) Get(ctx context.Context) (*types.FacilitatorConfig, error) {
	return f.view.Get(ctx)
}

func deserializeFacilitator(raw string) (*types.FacilitatorConfig, error) {
	var cfg types.FacilitatorConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("deserializing facilitator: %w", err)
	}
	return &cfg, nil
}
