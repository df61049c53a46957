// Package mcp implements the JSON-RPC (Model Context Protocol) sub-pipeline:
// method-aware route-key derivation, list-method enrichment, and error
// formatting, per spec.md §4.7.
package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/foldset/gateway-core/routes"
	"github.com/foldset/gateway-core/types"
)

// Request is the subset of a JSON-RPC 2.0 request the core reads.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ParseRequest validates that body looks like a JSON-RPC request — an
// object containing both "jsonrpc" and "method" — and returns it, or nil if
// it does not qualify (spec.md I4: MCP path requires "a valid JSON-RPC
// body").
func ParseRequest(body json.RawMessage) (*Request, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, nil //nolint:nilerr // malformed body is "not MCP", not a hard error
	}
	if _, hasVersion := probe["jsonrpc"]; !hasVersion {
		return nil, nil
	}
	if _, hasMethod := probe["method"]; !hasMethod {
		return nil, nil
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decoding json-rpc request: %w", err)
	}
	return &req, nil
}

// listToCallMethod maps a list method to the call method it enumerates.
var listToCallMethod = map[string]string{
	"tools/list":     "tools/call",
	"resources/list": "resources/read",
	"prompts/list":   "prompts/get",
}

// IsListMethod reports whether method is one of the MCP list methods.
func IsListMethod(method string) bool {
	_, ok := listToCallMethod[method]
	return ok
}

// BuildRouteKey returns the MCP route key for a single Mcp restriction:
// "{endpoint}/{method}:{name}".
func BuildRouteKey(endpoint string, r types.Restriction) string {
	return endpoint + "/" + r.Method + ":" + r.Name
}

// RouteKeyFromParams derives a route key for a call-method request from its
// params. identifier is params.name, falling back to params.uri; if
// neither is a string, ok is false (spec.md §4.7 (B)).
func RouteKeyFromParams(endpoint, method string, params json.RawMessage) (key string, ok bool) {
	if len(params) == 0 {
		return "", false
	}
	var decoded struct {
		Name *string `json:"name"`
		URI  *string `json:"uri"`
	}
	if err := json.Unmarshal(params, &decoded); err != nil {
		return "", false
	}
	identifier := decoded.Name
	if identifier == nil {
		identifier = decoded.URI
	}
	if identifier == nil {
		return "", false
	}
	return endpoint + "/" + method + ":" + *identifier, true
}

// BuildRoutesConfig builds the MCP route table: every Mcp restriction keyed
// by BuildRouteKey, in restriction order.
func BuildRoutesConfig(restrictions []types.Restriction, paymentMethods []types.PaymentMethod, mcpEndpoint, termsOfServiceURL string) *routes.Table {
	table := routes.NewTable()
	for _, r := range restrictions {
		if r.Type != types.RestrictionMCP {
			continue
		}
		table.Set(BuildRouteKey(mcpEndpoint, r), routes.BuildRouteEntry(r, paymentMethods, termsOfServiceURL))
	}
	return table
}

// ListPaymentRequirement is one entry in the Payment-Required list-response
// header (spec.md §4.7 (A)).
type ListPaymentRequirement struct {
	Name        string                   `json:"name"`
	Method      string                   `json:"method"`
	Description string                   `json:"description"`
	Price       float64                  `json:"price"`
	Scheme      string                   `json:"scheme"`
	Accepts     []ListPaymentRequirementAccept `json:"accepts"`
}

// ListPaymentRequirementAccept is one payment option within a
// ListPaymentRequirement.
type ListPaymentRequirementAccept struct {
	Network          string `json:"network"`
	ChainDisplayName string `json:"chainDisplayName"`
	Asset            string `json:"asset"`
	AssetDisplayName string `json:"assetDisplayName"`
	Amount           string `json:"amount"`
	PayTo            string `json:"payTo"`
}

// ListPaymentRequirements collects all Mcp restrictions matching the call
// method mapped from listMethod, with price > 0 — confirmed against
// original_source/python/core/foldset/mcp.py's strict "r.price > 0" filter
// (see SPEC_FULL.md §4, Open Questions resolution).
func ListPaymentRequirements(listMethod string, restrictions []types.Restriction, paymentMethods []types.PaymentMethod) []ListPaymentRequirement {
	callMethod, ok := listToCallMethod[listMethod]
	if !ok {
		return nil
	}

	var out []ListPaymentRequirement
	for _, r := range restrictions {
		if r.Type != types.RestrictionMCP || r.Method != callMethod || r.Price <= 0 {
			continue
		}
		accepts := make([]ListPaymentRequirementAccept, 0, len(paymentMethods))
		for _, pm := range paymentMethods {
			accepts = append(accepts, ListPaymentRequirementAccept{
				Network:          pm.Caip2ID,
				ChainDisplayName: pm.ChainDisplayName,
				Asset:            pm.ContractAddress,
				AssetDisplayName: pm.AssetDisplayName,
				Amount:           routes.PriceToAmount(r.Price, pm.Decimals),
				PayTo:            pm.PayToWalletAddress,
			})
		}
		out = append(out, ListPaymentRequirement{
			Name: r.Name, Method: r.Method, Description: r.Description,
			Price: r.Price, Scheme: r.Scheme, Accepts: accepts,
		})
	}
	return out
}

// ListPaymentRequiredHeader builds the JSON value of the Payment-Required
// response header for the list-method branch, or "" if there is nothing to
// advertise.
func ListPaymentRequiredHeader(requirements []ListPaymentRequirement, termsOfServiceURL string) (string, error) {
	if len(requirements) == 0 {
		return "", nil
	}
	payload := struct {
		Requirements      []ListPaymentRequirement `json:"requirements"`
		TermsOfServiceURL string                   `json:"terms_of_service_url,omitempty"`
	}{Requirements: requirements, TermsOfServiceURL: termsOfServiceURL}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payment-required header: %w", err)
	}
	return string(raw), nil
}

// RPCError is the error object within a JSON-RPC error response.
type RPCError struct {
	Code    int `json:"code"`
	Message string `json:"message"`
	Data    any `json:"data,omitempty"`
}

// ErrorEnvelope is a full JSON-RPC 2.0 error response.
type ErrorEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   RPCError        `json:"error"`
}

// BuildErrorEnvelope constructs the JSON-RPC error response body for a
// payment-error result (spec.md §4.7 (B)).
func BuildErrorEnvelope(rpcID json.RawMessage, code int, message string, data any) ([]byte, error) {
	env := ErrorEnvelope{JSONRPC: "2.0", ID: rpcID, Error: RPCError{Code: code, Message: message, Data: data}}
	return json.Marshal(env)
}

// PaymentErrorData is the `error.data` object of a call-method 402 body.
type PaymentErrorData struct {
	Version           string             `json:"version"`
	RequestID         string             `json:"request_id"`
	Timestamp         string             `json:"timestamp"`
	Description       string             `json:"description"`
	Price             float64            `json:"price"`
	TermsOfServiceURL string             `json:"terms_of_service_url,omitempty"`
	PaymentMethods    []PaymentMethodOut `json:"payment_methods"`
}

// PaymentMethodOut is one entry of PaymentErrorData.PaymentMethods, shared
// shape with the API formatter's payment_methods array.
type PaymentMethodOut struct {
	Network   string `json:"network"`
	Asset     string `json:"asset"`
	Decimals  int    `json:"decimals"`
	PayTo     string `json:"pay_to"`
	Chain     string `json:"chain"`
	AssetName string `json:"asset_name"`
}

func paymentMethodsOut(paymentMethods []types.PaymentMethod) []PaymentMethodOut {
	out := make([]PaymentMethodOut, 0, len(paymentMethods))
	for _, pm := range paymentMethods {
		out = append(out, PaymentMethodOut{
			Network: pm.Caip2ID, Asset: pm.ContractAddress, Decimals: pm.Decimals,
			PayTo: pm.PayToWalletAddress, Chain: pm.ChainDisplayName, AssetName: pm.AssetDisplayName,
		})
	}
	return out
}

// FormatCallPaymentError rewrites result's body/content-type into the MCP
// JSON-RPC 402 error envelope (spec.md §4.7 (B)).
func FormatCallPaymentError(result *types.ProcessRequestResult, rpcID json.RawMessage, paymentMethods []types.PaymentMethod, termsOfServiceURL string) error {
	var description string
	var price float64
	if result.Restriction != nil {
		description = result.Restriction.Description
		price = result.Restriction.Price
	}
	data := PaymentErrorData{
		Version: result.Metadata.Version, RequestID: result.Metadata.RequestID,
		Timestamp: result.Metadata.Timestamp, Description: description, Price: price,
		TermsOfServiceURL: termsOfServiceURL, PaymentMethods: paymentMethodsOut(paymentMethods),
	}
	body, err := BuildErrorEnvelope(rpcID, 402, "Payment required", data)
	if err != nil {
		return fmt.Errorf("building mcp payment error: %w", err)
	}
	if result.Response == nil {
		result.Response = &types.Response{}
	}
	result.Response.Body = string(body)
	if result.Response.Headers == nil {
		result.Response.Headers = map[string]string{}
	}
	result.Response.Headers["Content-Type"] = "application/json"
	return nil
}
