package routes

import (
	"testing"

	"github.com/foldset/gateway-core/types"
)

func TestPriceToAmount(t *testing.T) {
	cases := []struct {
		price    float64
		decimals int
		want     string
	}{
		{0.5, 6, "500000"},
		{1, 6, "1000000"},
		{0.000001, 6, "1"},
		{2.5, 2, "250"},
		{0, 6, "0"},
	}
	for _, c := range cases {
		got := PriceToAmount(c.price, c.decimals)
		if got != c.want {
			t.Errorf("PriceToAmount(%v, %d) = %q, want %q", c.price, c.decimals, got, c.want)
		}
	}
}

func TestBuildRouteKey(t *testing.T) {
	api := types.Restriction{Type: types.RestrictionAPI, Path: "/v1/widgets", HTTPMethod: "post"}
	if got, want := BuildRouteKey(api), "POST /v1/widgets"; got != want {
		t.Errorf("api route key = %q, want %q", got, want)
	}

	web := types.Restriction{Type: types.RestrictionWeb, Path: "/premium"}
	if got, want := BuildRouteKey(web), "/premium"; got != want {
		t.Errorf("web route key = %q, want %q", got, want)
	}

	apiNoMethod := types.Restriction{Type: types.RestrictionAPI, Path: "/v1/widgets"}
	if got, want := BuildRouteKey(apiNoMethod), "/v1/widgets"; got != want {
		t.Errorf("api route key without method = %q, want %q", got, want)
	}
}

func TestTableInsertionOrderAndOverwrite(t *testing.T) {
	tbl := NewTable()
	tbl.Set("b", RouteConfig{Description: "second"})
	tbl.Set("a", RouteConfig{Description: "first"})
	tbl.Set("b", RouteConfig{Description: "second-updated"})

	var order []string
	tbl.Each(func(key string, cfg RouteConfig) bool {
		order = append(order, key)
		return true
	})
	if want := []string{"b", "a"}; order[0] != want[0] || order[1] != want[1] {
		t.Errorf("insertion order = %v, want %v", order, want)
	}

	cfg, ok := tbl.Get("b")
	if !ok || cfg.Description != "second-updated" {
		t.Errorf("overwrite did not take effect: %+v", cfg)
	}
}

func TestTableMergeAppendsAfterExisting(t *testing.T) {
	a := NewTable()
	a.Set("x", RouteConfig{})
	b := NewTable()
	b.Set("y", RouteConfig{})
	a.Merge(b)

	var order []string
	a.Each(func(key string, cfg RouteConfig) bool {
		order = append(order, key)
		return true
	})
	if len(order) != 2 || order[0] != "x" || order[1] != "y" {
		t.Errorf("merged order = %v, want [x y]", order)
	}
}

func TestBuildRoutesConfigSkipsMCPRestrictions(t *testing.T) {
	restrictions := []types.Restriction{
		{Type: types.RestrictionWeb, Path: "/a"},
		{Type: types.RestrictionMCP, Method: "tools/call", Name: "search"},
		{Type: types.RestrictionAPI, Path: "/b", HTTPMethod: "GET"},
	}
	table := BuildRoutesConfig(restrictions, nil, "")
	if table.Len() != 2 {
		t.Fatalf("expected 2 content routes, got %d", table.Len())
	}
	if _, ok := table.Get("/a"); !ok {
		t.Error("missing web route /a")
	}
	if _, ok := table.Get("GET /b"); !ok {
		t.Error("missing api route GET /b")
	}
}

func TestBuildRouteEntryCarriesTermsOfService(t *testing.T) {
	r := types.Restriction{Type: types.RestrictionWeb, Path: "/x", Price: 1, Scheme: "exact"}
	pm := []types.PaymentMethod{{Caip2ID: "eip155:8453", Decimals: 6, PayToWalletAddress: "0xabc"}}
	cfg := BuildRouteEntry(r, pm, "https://example.com/tos")

	if len(cfg.Accepts) != 1 {
		t.Fatalf("expected 1 accept option, got %d", len(cfg.Accepts))
	}
	if cfg.Accepts[0].Extra["termsOfServiceUrl"] != "https://example.com/tos" {
		t.Errorf("terms of service url not propagated: %+v", cfg.Accepts[0].Extra)
	}
	if cfg.Accepts[0].Price != "1000000" {
		t.Errorf("price = %q, want 1000000", cfg.Accepts[0].Price)
	}
}
