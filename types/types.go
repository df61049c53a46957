// Package types holds the data model shared across the gateway core:
// request metadata, the cached configuration schemas, the restriction sum
// type, and the result/event shapes the dispatcher and telemetry produce.
package types

import "context"

// RequestAdapter is the capability the core consumes from a concrete
// framework adapter (net/http, gin, chi, a Lambda event, ...). The core
// never constructs one itself — it is handed an implementation by the
// caller for the duration of one request.
type RequestAdapter interface {
	Method() string
	Path() string
	URL() string
	Host() string
	Header(name string) string
	UserAgent() string
	IPAddress() string
	QueryParams() map[string][]string
	Body(ctx context.Context) (any, error)
}

// RequestMetadata is created once at the start of a request, stamped into
// every result and telemetry event, and never mutated afterward.
type RequestMetadata struct {
	Version   string `json:"version"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// APIProtectionMode controls whether only matched bots are gated, or every
// request that hits a restriction.
type APIProtectionMode string

const (
	ProtectionModeBots APIProtectionMode = "bots"
	ProtectionModeAll  APIProtectionMode = "all"
)

// HostConfig is the per-tenant host configuration. A nil *HostConfig means
// the worker is unconfigured for this host.
type HostConfig struct {
	Host               string            `json:"host"`
	APIProtectionMode  APIProtectionMode `json:"apiProtectionMode"`
	MCPEndpoint        string            `json:"mcpEndpoint,omitempty"`
	TermsOfServiceURL  string            `json:"termsOfServiceUrl,omitempty"`
}

// RestrictionType tags the closed Restriction sum type.
type RestrictionType string

const (
	RestrictionWeb RestrictionType = "web"
	RestrictionAPI RestrictionType = "api"
	RestrictionMCP RestrictionType = "mcp"
)

// Restriction is a closed sum type over web/api/mcp shapes. The shared
// fields are flattened into the head of the struct; fields that only apply
// to one variant are tagged `omitempty` and must only be read once Type has
// been checked. Formatters and route builders dispatch on Type — this is
// deliberately not an interface hierarchy, since the variants are exhaustive
// and known at compile time.
type Restriction struct {
	Type        RestrictionType `json:"type"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	Scheme      string          `json:"scheme"`

	// Web only.
	Path string `json:"path,omitempty"`

	// Api only (Path is shared with Web above).
	HTTPMethod string `json:"httpMethod,omitempty"`

	// Mcp only.
	Method string `json:"method,omitempty"`
	Name   string `json:"name,omitempty"`
}

// PaymentMethod describes one accepted on-chain asset. Multiple methods per
// network are legal; RouteTable takes the Cartesian product against
// restrictions, and the paywall groups methods by Caip2ID for display.
type PaymentMethod struct {
	Caip2ID            string            `json:"caip2_id"`
	Decimals           int               `json:"decimals"`
	ContractAddress    string            `json:"contract_address"`
	PayToWalletAddress string            `json:"pay_to_wallet_address"`
	ChainDisplayName   string            `json:"chain_display_name"`
	AssetDisplayName   string            `json:"asset_display_name"`
	Extra              map[string]string `json:"extra,omitempty"`
}

// Bot matches a request's User-Agent against a lowercased substring.
type Bot struct {
	UserAgent string `json:"user_agent"`
	Force200  bool   `json:"force_200"`
}

// FacilitatorConfig describes the remote x402 facilitator. Field names and
// json tags mirror the KV entry's camelCase schema exactly (confirmed
// against original_source/python/core/foldset/config.py); there is no
// snake_case translation layer.
type FacilitatorConfig struct {
	URL              string            `json:"url"`
	VerifyHeaders    map[string]string `json:"verifyHeaders,omitempty"`
	SettleHeaders    map[string]string `json:"settleHeaders,omitempty"`
	SupportedHeaders map[string]string `json:"supportedHeaders,omitempty"`
}

// HasHeaderOverrides reports whether any per-call header group was
// configured, in which case a header-provider closure must be installed on
// the facilitator client.
func (f *FacilitatorConfig) HasHeaderOverrides() bool {
	return f != nil && (len(f.VerifyHeaders) > 0 || len(f.SettleHeaders) > 0 || len(f.SupportedHeaders) > 0)
}

// ResultType enumerates the outcomes of ProcessRequest.
type ResultType string

const (
	ResultNoPaymentRequired ResultType = "no-payment-required"
	ResultPaymentError      ResultType = "payment-error"
	ResultPaymentVerified   ResultType = "payment-verified"
	ResultHealthCheck       ResultType = "health-check"
)

// Response is the shaped HTTP response a ProcessRequestResult may carry.
type Response struct {
	Status  int
	Body    string
	Headers map[string]string
}

// ProcessRequestResult is the single result struct for the whole decision
// pipeline. Headers is valid on every Type, not just payment-error — both
// the MCP list-enrichment path and the plain pass-through path may want to
// attach response headers without shaping a body.
type ProcessRequestResult struct {
	Type                ResultType
	Metadata            RequestMetadata
	Restriction         *Restriction
	Response            *Response
	PaymentPayload       []byte
	PaymentRequirements  []byte
	Headers             map[string]string
}

// ProcessSettleResult is returned by Dispatcher.ProcessSettlement.
type ProcessSettleResult struct {
	Success     bool
	ErrorReason string
	Headers     map[string]string
}

// EventPayload is the body posted to the telemetry events endpoint.
type EventPayload struct {
	Method          string `json:"method"`
	StatusCode      int    `json:"status_code"`
	UserAgent       string `json:"user_agent,omitempty"`
	Referer         string `json:"referer,omitempty"`
	Href            string `json:"href"`
	Hostname        string `json:"hostname"`
	Pathname        string `json:"pathname"`
	Search          string `json:"search"`
	IPAddress       string `json:"ip_address,omitempty"`
	RequestID       string `json:"request_id"`
	PaymentResponse string `json:"payment_response,omitempty"`
}

// ErrorReport is the body posted to the telemetry errors endpoint.
type ErrorReport struct {
	Error   string         `json:"error"`
	Stack   string         `json:"stack,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}
