// Package routes builds the route table (content routes and, separately,
// MCP routes) from restrictions crossed with payment methods, per spec.md
// §4.3. The restriction back-reference is carried as a plain field on
// RouteConfig rather than a cyclic pointer graph (spec.md §9 "Cyclic
// reference").
package routes

import (
	"math"
	"strconv"
	"strings"

	"github.com/foldset/gateway-core/types"
)

// PaymentOption is one entry in a RouteConfig's Accepts list.
type PaymentOption struct {
	Scheme  string
	Price   string // minor units, decimal-integer string (see PriceToAmount)
	Network string
	PayTo   string
	Extra   map[string]string
}

// RouteConfig is the value half of the route table: what a matched route
// accepts, how it should be described, and which Restriction produced it.
type RouteConfig struct {
	Accepts     []PaymentOption
	Description string
	MimeType    string
	Restriction types.Restriction
}

// Table maps a route key (see BuildRouteKey / mcp.BuildRouteKey) to its
// RouteConfig, preserving insertion order — the resource server matches
// routes in that order and the first hit wins (spec.md §4.4).
type Table struct {
	keys []string
	byKey map[string]RouteConfig
}

// NewTable returns an empty, ordered route table.
func NewTable() *Table {
	return &Table{byKey: make(map[string]RouteConfig)}
}

// Set inserts or overwrites key. A fresh key is appended to the iteration
// order; overwriting an existing key keeps its original position.
func (t *Table) Set(key string, cfg RouteConfig) {
	if _, exists := t.byKey[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.byKey[key] = cfg
}

// Get looks up a route config by exact key.
func (t *Table) Get(key string) (RouteConfig, bool) {
	cfg, ok := t.byKey[key]
	return cfg, ok
}

// Len reports the number of distinct routes.
func (t *Table) Len() int { return len(t.keys) }

// Each iterates routes in insertion order.
func (t *Table) Each(fn func(key string, cfg RouteConfig) bool) {
	for _, k := range t.keys {
		if !fn(k, t.byKey[k]) {
			return
		}
	}
}

// Merge appends other's routes (in its order) after t's existing routes.
func (t *Table) Merge(other *Table) {
	other.Each(func(key string, cfg RouteConfig) bool {
		t.Set(key, cfg)
		return true
	})
}

// PriceToAmount converts a USD price into a decimal-integer minor-units
// string for an asset with the given decimals, e.g. PriceToAmount(0.5, 6)
// == "500000". Rounding is nearest-integer (ties away from zero); the only
// hard requirement (spec.md §4.3) is consistency with the facilitator.
func PriceToAmount(priceUSD float64, decimals int) string {
	amount := priceUSD * math.Pow(10, float64(decimals))
	rounded := math.Round(amount)
	return strconv.FormatInt(int64(rounded), 10)
}

// BuildRouteKey returns the content-route key for a non-MCP restriction:
// "VERB path" for an Api restriction with an http method, else just path.
func BuildRouteKey(r types.Restriction) string {
	if r.Type == types.RestrictionAPI && r.HTTPMethod != "" {
		return strings.ToUpper(r.HTTPMethod) + " " + r.Path
	}
	return r.Path
}

// BuildRouteEntry builds the RouteConfig for one restriction against the
// full set of payment methods, adding termsOfServiceURL into each option's
// Extra map when set.
func BuildRouteEntry(r types.Restriction, paymentMethods []types.PaymentMethod, termsOfServiceURL string) RouteConfig {
	options := make([]PaymentOption, 0, len(paymentMethods))
	for _, pm := range paymentMethods {
		extra := map[string]string{}
		for k, v := range pm.Extra {
			extra[k] = v
		}
		if termsOfServiceURL != "" {
			extra["termsOfServiceUrl"] = termsOfServiceURL
		}
		options = append(options, PaymentOption{
			Scheme:  r.Scheme,
			Price:   PriceToAmount(r.Price, pm.Decimals),
			Network: pm.Caip2ID,
			PayTo:   pm.PayToWalletAddress,
			Extra:   extra,
		})
	}
	return RouteConfig{
		Accepts:     options,
		Description: r.Description,
		MimeType:    "application/json",
		Restriction: r,
	}
}

// BuildRoutesConfig builds the content route table: every non-MCP
// restriction keyed by BuildRouteKey, in restriction order.
func BuildRoutesConfig(restrictions []types.Restriction, paymentMethods []types.PaymentMethod, termsOfServiceURL string) *Table {
	table := NewTable()
	for _, r := range restrictions {
		if r.Type == types.RestrictionMCP {
			continue
		}
		table.Set(BuildRouteKey(r), BuildRouteEntry(r, paymentMethods, termsOfServiceURL))
	}
	return table
}
