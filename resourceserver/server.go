package resourceserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/foldset/gateway-core/routes"
	"github.com/foldset/gateway-core/types"
)

// Mechanism validates payment method addresses for one CAIP-2 namespace
// (mechanisms/evm.Server, mechanisms/svm.Server). Registered into a Server
// the way register_exact_evm_server/register_exact_svm_server register
// scheme servers onto x402ResourceServer in the original.
type Mechanism interface {
	Supports(network string) bool
	ValidateAddress(address string) error
}

// HTTPRequestContext is the minimal request shape the resource server needs
// to match a route and run the payment flow — path, verb, and the raw
// payment header (PAYMENT-SIGNATURE or X-PAYMENT), if any.
type HTTPRequestContext struct {
	Method        string
	Path          string
	PaymentHeader string
}

// PaymentRequirement is the wire shape of one entry in a 402 Accepts list.
type PaymentRequirement struct {
	Scheme  string            `json:"scheme"`
	Network string            `json:"network"`
	Amount  string            `json:"maxAmountRequired"`
	PayTo   string            `json:"payTo"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// PaymentRequired is the JSON payload of the PAYMENT-REQUIRED response
// header — the 402 envelope clients parse to build a payment.
type PaymentRequired struct {
	X402Version int                  `json:"x402Version"`
	Error       string               `json:"error"`
	Accepts     []PaymentRequirement `json:"accepts"`
}

const paymentRequiredHeaderName = "PAYMENT-REQUIRED"

// parsedRoute is one compiled entry of the ordered route table.
type parsedRoute struct {
	key  string
	verb string
	re   *regexp.Regexp
	cfg  routes.RouteConfig
}

// Server is the ResourceServer wrapper (spec.md §4.4): a compiled, ordered
// route table plus a facilitator client. It treats route patterns as raw
// regex (matching FoldsetHTTPResourceServer._parse_route_pattern) rather
// than a path-templating syntax.
type Server struct {
	order       []parsedRoute
	facilitator FacilitatorClient
	mechanisms  []Mechanism
}

// New compiles table into an ordered, matchable route list and pairs it
// with facilitator and the registered address-validating mechanisms.
func New(facilitator FacilitatorClient, table *routes.Table, mechanisms ...Mechanism) (*Server, error) {
	s := &Server{facilitator: facilitator, mechanisms: mechanisms}
	var err error
	table.Each(func(key string, cfg routes.RouteConfig) bool {
		verb, re, parseErr := parseRoutePattern(key)
		if parseErr != nil {
			err = fmt.Errorf("route %q: %w", key, parseErr)
			return false
		}
		s.order = append(s.order, parsedRoute{key: key, verb: verb, re: re, cfg: cfg})
		return true
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// parseRoutePattern splits "VERB pattern" into an uppercased verb ("*" if
// omitted) and a case-insensitive compiled regex, mirroring
// FoldsetHTTPResourceServer._parse_route_pattern in original_source.
func parseRoutePattern(pattern string) (string, *regexp.Regexp, error) {
	verb := "*"
	path := pattern
	if idx := strings.IndexAny(pattern, " \t"); idx >= 0 {
		if head := strings.TrimSpace(pattern[:idx]); head != "" {
			verb = strings.ToUpper(head)
		}
		path = strings.TrimSpace(pattern[idx+1:])
	}
	re, err := regexp.Compile("(?i)" + path)
	if err != nil {
		return "", nil, fmt.Errorf("compiling route pattern %q: %w", path, err)
	}
	return verb, re, nil
}

// Initialize validates every registered payment method address against the
// mechanism matching its network, failing fast on a malformed operator
// configuration rather than surfacing it lazily on the first paid request.
func (s *Server) Initialize(context.Context) error {
	for _, route := range s.order {
		for _, accept := range route.cfg.Accepts {
			mech := s.mechanismFor(accept.Network)
			if mech == nil {
				continue
			}
			if err := mech.ValidateAddress(accept.PayTo); err != nil {
				return fmt.Errorf("route %q: %w", route.key, err)
			}
		}
	}
	return nil
}

func (s *Server) mechanismFor(network string) Mechanism {
	for _, m := range s.mechanisms {
		if m.Supports(network) {
			return m
		}
	}
	return nil
}

// match finds the first route whose verb and pattern both match, in
// insertion order — first hit wins (spec.md §4.4).
func (s *Server) match(method, path string) (parsedRoute, bool) {
	method = strings.ToUpper(method)
	for _, route := range s.order {
		if route.verb != "*" && route.verb != method {
			continue
		}
		if route.re.MatchString(path) {
			return route, true
		}
	}
	return parsedRoute{}, false
}

// RequiresPayment reports whether a request would hit a restricted route,
// without running the verify flow.
func (s *Server) RequiresPayment(method, path string) bool {
	_, ok := s.match(method, path)
	return ok
}

func buildRequirements(cfg routes.RouteConfig) []PaymentRequirement {
	out := make([]PaymentRequirement, 0, len(cfg.Accepts))
	for _, a := range cfg.Accepts {
		out = append(out, PaymentRequirement{
			Scheme: a.Scheme, Network: a.Network, Amount: a.Price, PayTo: a.PayTo, Extra: a.Extra,
		})
	}
	return out
}

// encodePaymentRequiredHeader base64-encodes the JSON 402 envelope,
// matching x402's encode_payment_required_header convention.
func encodePaymentRequiredHeader(envelope PaymentRequired) (string, error) {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshaling payment-required envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ProcessHTTPRequestWithRestriction runs the full decision for one request:
// unmatched routes pass through, matched routes without a payment header or
// with an invalid one come back as payment-error (empty body, headers only
// — the caller shapes the body per spec.md §4.5/§4.6/§4.7), and a verified
// payment comes back as payment-verified with the raw payload/requirements
// attached for later settlement.
//
// Adapted from FoldsetHTTPResourceServer.process_http_request_with_restriction:
// the restriction of the matched route is attached to payment-error (and
// payment-verified) results, and the 402 response carries headers only,
// never a body.
func (s *Server) ProcessHTTPRequestWithRestriction(ctx context.Context, reqCtx HTTPRequestContext) (types.ProcessRequestResult, error) {
	route, ok := s.match(reqCtx.Method, reqCtx.Path)
	if !ok {
		return types.ProcessRequestResult{Type: types.ResultNoPaymentRequired}, nil
	}

	restriction := route.cfg.Restriction
	requirements := buildRequirements(route.cfg)
	requirementsJSON, err := json.Marshal(requirements)
	if err != nil {
		return types.ProcessRequestResult{}, fmt.Errorf("marshaling payment requirements: %w", err)
	}

	if reqCtx.PaymentHeader == "" {
		return s.paymentErrorResult(restriction, requirements, requirementsJSON, "")
	}

	verifyResult, err := s.facilitator.Verify(ctx, reqCtx.PaymentHeader, requirementsJSON)
	if err != nil {
		return types.ProcessRequestResult{}, fmt.Errorf("verifying payment: %w", err)
	}
	if !verifyResult.IsValid {
		return s.paymentErrorResult(restriction, requirements, requirementsJSON, verifyResult.InvalidReason)
	}

	return types.ProcessRequestResult{
		Type:                types.ResultPaymentVerified,
		Restriction:         &restriction,
		PaymentPayload:      []byte(reqCtx.PaymentHeader),
		PaymentRequirements: requirementsJSON,
	}, nil
}

func (s *Server) paymentErrorResult(restriction types.Restriction, requirements []PaymentRequirement, requirementsJSON []byte, reason string) (types.ProcessRequestResult, error) {
	errMsg := "Payment required"
	if reason != "" {
		errMsg = reason
	}
	header, err := encodePaymentRequiredHeader(PaymentRequired{X402Version: 1, Error: errMsg, Accepts: requirements})
	if err != nil {
		return types.ProcessRequestResult{}, err
	}
	return types.ProcessRequestResult{
		Type:                types.ResultPaymentError,
		Restriction:         &restriction,
		PaymentRequirements: requirementsJSON,
		Response: &types.Response{
			Status:  402,
			Headers: map[string]string{paymentRequiredHeaderName: header},
		},
	}, nil
}

// Settle routes a verified payment to the facilitator's /settle endpoint.
func (s *Server) Settle(ctx context.Context, paymentPayload, paymentRequirements []byte) (types.ProcessSettleResult, error) {
	result, err := s.facilitator.Settle(ctx, paymentPayload, paymentRequirements)
	if err != nil {
		return types.ProcessSettleResult{}, fmt.Errorf("settling payment: %w", err)
	}
	return types.ProcessSettleResult{Success: result.Success, ErrorReason: result.ErrorReason, Headers: result.Headers}, nil
}
