package resourceserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/foldset/gateway-core/routes"
	"github.com/foldset/gateway-core/types"
)

type fakeFacilitator struct {
	verifyResult VerifyResult
	verifyErr    error
	settleResult SettleResult
	settleErr    error
}

func (f *fakeFacilitator) Verify(ctx context.Context, paymentHeader string, requirements []byte) (VerifyResult, error) {
	return f.verifyResult, f.verifyErr
}

func (f *fakeFacilitator) Settle(ctx context.Context, paymentPayload, requirements []byte) (SettleResult, error) {
	return f.settleResult, f.settleErr
}

type fakeMechanism struct {
	prefix  string
	invalid map[string]bool
}

func (m *fakeMechanism) Supports(network string) bool { return len(network) >= len(m.prefix) && network[:len(m.prefix)] == m.prefix }
func (m *fakeMechanism) ValidateAddress(address string) error {
	if m.invalid[address] {
		return errNotValid
	}
	return nil
}

var errNotValid = &addressError{}

type addressError struct{}

func (*addressError) Error() string { return "invalid address" }

func buildTable() *routes.Table {
	restriction := types.Restriction{Type: types.RestrictionAPI, Path: "/v1/widgets", HTTPMethod: "POST", Price: 1, Scheme: "exact"}
	pm := []types.PaymentMethod{{Caip2ID: "eip155:8453", Decimals: 6, PayToWalletAddress: "0xabc"}}
	table := routes.NewTable()
	table.Set(routes.BuildRouteKey(restriction), routes.BuildRouteEntry(restriction, pm, ""))
	return table
}

func TestParseRoutePatternWithVerb(t *testing.T) {
	verb, re, err := parseRoutePattern("POST /v1/widgets")
	if err != nil {
		t.Fatalf("parseRoutePattern: %v", err)
	}
	if verb != "POST" {
		t.Errorf("verb = %q, want POST", verb)
	}
	if !re.MatchString("/v1/widgets") {
		t.Error("expected pattern to match /v1/widgets")
	}
}

func TestParseRoutePatternWithoutVerb(t *testing.T) {
	verb, re, err := parseRoutePattern("/premium")
	if err != nil {
		t.Fatalf("parseRoutePattern: %v", err)
	}
	if verb != "*" {
		t.Errorf("verb = %q, want *", verb)
	}
	if !re.MatchString("/premium") {
		t.Error("expected pattern to match /premium")
	}
}

func TestParseRoutePatternWithLeadingWhitespace(t *testing.T) {
	verb, re, err := parseRoutePattern("  /a")
	if err != nil {
		t.Fatalf("parseRoutePattern: %v", err)
	}
	if verb != "*" {
		t.Errorf("verb = %q, want *", verb)
	}
	if !re.MatchString("/a") {
		t.Error("expected pattern to match /a")
	}
}

func TestRequiresPaymentMatchesFirstHit(t *testing.T) {
	table := buildTable()
	server, err := New(&fakeFacilitator{}, table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !server.RequiresPayment("POST", "/v1/widgets") {
		t.Error("expected POST /v1/widgets to require payment")
	}
	if server.RequiresPayment("GET", "/v1/widgets") {
		t.Error("GET should not match a POST-only route")
	}
	if server.RequiresPayment("POST", "/unknown") {
		t.Error("unknown path should not require payment")
	}
}

func TestRequiresPaymentMatchesLeadingWhitespaceRouteForAnyVerb(t *testing.T) {
	restriction := types.Restriction{Type: types.RestrictionWeb, Path: "  /premium", Price: 1, Scheme: "exact"}
	table := routes.NewTable()
	table.Set(restriction.Path, routes.BuildRouteEntry(restriction, nil, ""))

	server, err := New(&fakeFacilitator{}, table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !server.RequiresPayment("GET", "/premium") {
		t.Error("expected a leading-whitespace route key to match GET (verb defaults to *)")
	}
	if !server.RequiresPayment("POST", "/premium") {
		t.Error("expected a leading-whitespace route key to match POST (verb defaults to *)")
	}
}

func TestInitializeValidatesAddresses(t *testing.T) {
	table := buildTable()
	mech := &fakeMechanism{prefix: "eip155:", invalid: map[string]bool{"0xabc": true}}
	server, err := New(&fakeFacilitator{}, table, mech)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := server.Initialize(context.Background()); err == nil {
		t.Error("expected Initialize to fail on invalid address")
	}
}

func TestProcessHTTPRequestWithRestrictionNoHeaderReturnsPaymentError(t *testing.T) {
	table := buildTable()
	server, err := New(&fakeFacilitator{}, table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := server.ProcessHTTPRequestWithRestriction(context.Background(), HTTPRequestContext{Method: "POST", Path: "/v1/widgets"})
	if err != nil {
		t.Fatalf("ProcessHTTPRequestWithRestriction: %v", err)
	}
	if result.Type != types.ResultPaymentError {
		t.Fatalf("Type = %q, want payment-error", result.Type)
	}
	if result.Response == nil || result.Response.Status != 402 {
		t.Fatalf("expected 402 response, got %+v", result.Response)
	}
	header := result.Response.Headers[paymentRequiredHeaderName]
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		t.Fatalf("decoding header: %v", err)
	}
	var envelope PaymentRequired
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshaling envelope: %v", err)
	}
	if len(envelope.Accepts) != 1 {
		t.Errorf("expected 1 accept option, got %d", len(envelope.Accepts))
	}
}

func TestProcessHTTPRequestWithRestrictionUnmatchedPassesThrough(t *testing.T) {
	table := buildTable()
	server, err := New(&fakeFacilitator{}, table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := server.ProcessHTTPRequestWithRestriction(context.Background(), HTTPRequestContext{Method: "GET", Path: "/unknown"})
	if err != nil {
		t.Fatalf("ProcessHTTPRequestWithRestriction: %v", err)
	}
	if result.Type != types.ResultNoPaymentRequired {
		t.Errorf("Type = %q, want no-payment-required", result.Type)
	}
}

func TestProcessHTTPRequestWithRestrictionValidPayment(t *testing.T) {
	table := buildTable()
	facilitator := &fakeFacilitator{verifyResult: VerifyResult{IsValid: true, Payer: "0xpayer"}}
	server, err := New(facilitator, table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := server.ProcessHTTPRequestWithRestriction(context.Background(), HTTPRequestContext{
		Method: "POST", Path: "/v1/widgets", PaymentHeader: "signed-payload",
	})
	if err != nil {
		t.Fatalf("ProcessHTTPRequestWithRestriction: %v", err)
	}
	if result.Type != types.ResultPaymentVerified {
		t.Fatalf("Type = %q, want payment-verified", result.Type)
	}
	if string(result.PaymentPayload) != "signed-payload" {
		t.Errorf("PaymentPayload = %q", result.PaymentPayload)
	}
}

func TestProcessHTTPRequestWithRestrictionInvalidPayment(t *testing.T) {
	table := buildTable()
	facilitator := &fakeFacilitator{verifyResult: VerifyResult{IsValid: false, InvalidReason: "bad signature"}}
	server, err := New(facilitator, table)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := server.ProcessHTTPRequestWithRestriction(context.Background(), HTTPRequestContext{
		Method: "POST", Path: "/v1/widgets", PaymentHeader: "signed-payload",
	})
	if err != nil {
		t.Fatalf("ProcessHTTPRequestWithRestriction: %v", err)
	}
	if result.Type != types.ResultPaymentError {
		t.Fatalf("Type = %q, want payment-error", result.Type)
	}
}

func TestSettleDelegatesToFacilitator(t *testing.T) {
	facilitator := &fakeFacilitator{settleResult: SettleResult{Success: true, Headers: map[string]string{"PAYMENT-RESPONSE": "abc"}}}
	server, err := New(facilitator, routes.NewTable())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := server.Settle(context.Background(), []byte("payload"), []byte("reqs"))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if result.Headers["PAYMENT-RESPONSE"] != "abc" {
		t.Errorf("Headers = %+v", result.Headers)
	}
}
