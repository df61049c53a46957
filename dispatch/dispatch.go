// Package dispatch implements the request-decision pipeline (spec.md §4.5,
// §4.6, §4.9): the top-level Dispatcher.ProcessRequest/ProcessSettlement
// state machines, the bot/restriction gating logic, and the API/Web
// 402-body formatters. Grounded in original_source/python/core/foldset/
// handler.py, api.py, web.py, and health.py.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/foldset/gateway-core/configviews"
	"github.com/foldset/gateway-core/resourceserver"
	"github.com/foldset/gateway-core/telemetry"
	"github.com/foldset/gateway-core/types"

	"github.com/google/uuid"
)

// HealthPath is the well-known health-check path, answered without
// consulting any configuration (spec.md §4.5 step 2).
const HealthPath = "/.well-known/foldset"

// Dispatcher wires the cached configuration views, the resource-server
// manager, and the telemetry sinks into the request/settlement pipelines.
// One Dispatcher is built per worker (see bootstrap.Core) and reused across
// requests.
type Dispatcher struct {
	HostConfig     *configviews.HostConfig
	Restrictions   *configviews.Restrictions
	PaymentMethods *configviews.PaymentMethods
	Bots           *configviews.Bots
	Servers        *resourceserver.Manager
	Events         telemetry.EventSink
	Errors         telemetry.ErrorSink

	Platform   string
	SDKVersion string
	Version    string
}

func buildMetadata(version string) types.RequestMetadata {
	return types.RequestMetadata{
		Version:   version,
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func noPaymentRequired(metadata types.RequestMetadata) types.ProcessRequestResult {
	return types.ProcessRequestResult{Type: types.ResultNoPaymentRequired, Metadata: metadata}
}

// ProcessRequest is the single entry point of the decision pipeline. Any
// panic or error surfacing from within is caught at this boundary, reported
// asynchronously, and turned into a pass-through result — the middleware
// must never fail a request that would otherwise succeed (spec.md §7,
// "Catastrophic").
func (d *Dispatcher) ProcessRequest(ctx context.Context, adapter types.RequestAdapter) (result types.ProcessRequestResult, err error) {
	metadata := buildMetadata(d.Version)

	defer func() {
		if r := recover(); r != nil {
			d.reportFailure(ctx, adapter, fmt.Errorf("panic in ProcessRequest: %v", r))
			result, err = noPaymentRequired(metadata), nil
		}
	}()

	if adapter.Path() == HealthPath {
		return d.healthCheck(metadata), nil
	}

	hostConfig, cfgErr := d.HostConfig.Get(ctx)
	if cfgErr != nil {
		d.reportFailure(ctx, adapter, cfgErr)
		return noPaymentRequired(metadata), nil
	}

	if hostConfig != nil && hostConfig.MCPEndpoint != "" && adapter.Path() == hostConfig.MCPEndpoint {
		result, resErr := d.handleMCPRequest(ctx, adapter, hostConfig.MCPEndpoint, metadata)
		if resErr != nil {
			d.reportFailure(ctx, adapter, resErr)
			return noPaymentRequired(metadata), nil
		}
		return result, nil
	}

	result, resErr := d.handleRequest(ctx, adapter, metadata)
	if resErr != nil {
		d.reportFailure(ctx, adapter, resErr)
		return noPaymentRequired(metadata), nil
	}
	return result, nil
}

func (d *Dispatcher) reportFailure(ctx context.Context, adapter types.RequestAdapter, err error) {
	slog.Error("dispatcher error, failing open", "err", err)
	if d.Errors != nil {
		d.Errors.ReportError(ctx, err, adapter)
	}
}

func (d *Dispatcher) healthCheck(metadata types.RequestMetadata) types.ProcessRequestResult {
	body, _ := json.Marshal(map[string]string{
		"status":       "ok",
		"core_version": d.Version,
		"sdk_version":  d.SDKVersion,
		"platform":     d.Platform,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
	return types.ProcessRequestResult{
		Type:     types.ResultHealthCheck,
		Metadata: metadata,
		Response: &types.Response{
			Status:  200,
			Body:    string(body),
			Headers: map[string]string{"Content-Type": "application/json"},
		},
	}
}

// handleRequest is the normal (non-MCP) decision path (spec.md §4.5 step 4).
func (d *Dispatcher) handleRequest(ctx context.Context, adapter types.RequestAdapter, metadata types.RequestMetadata) (types.ProcessRequestResult, error) {
	var bot *types.Bot
	if ua := adapter.UserAgent(); ua != "" {
		matched, err := d.Bots.Match(ctx, ua)
		if err != nil {
			return types.ProcessRequestResult{}, err
		}
		bot = matched
	}

	hostConfig, err := d.HostConfig.Get(ctx)
	if err != nil {
		return types.ProcessRequestResult{}, err
	}

	shouldCheck := bot != nil || (hostConfig != nil && hostConfig.APIProtectionMode == types.ProtectionModeAll)
	if !shouldCheck {
		return noPaymentRequired(metadata), nil
	}

	result, err := d.handlePaymentRequest(ctx, adapter, metadata, "")
	if err != nil {
		return types.ProcessRequestResult{}, err
	}
	if result.Type != types.ResultPaymentError {
		return result, nil
	}

	// Web restrictions are always bot-only.
	if result.Restriction != nil && result.Restriction.Type == types.RestrictionWeb && bot == nil {
		return noPaymentRequired(metadata), nil
	}

	paymentMethods, err := d.PaymentMethods.Get(ctx)
	if err != nil {
		return types.ProcessRequestResult{}, err
	}

	if len(paymentMethods) > 0 && result.Restriction != nil {
		tos := ""
		if hostConfig != nil {
			tos = hostConfig.TermsOfServiceURL
		}
		switch result.Restriction.Type {
		case types.RestrictionAPI:
			formatAPIPaymentError(&result, *result.Restriction, paymentMethods, tos)
		case types.RestrictionWeb:
			formatWebPaymentError(&result, *result.Restriction, paymentMethods, adapter, tos)
		}
	}

	if bot != nil && bot.Force200 && result.Response != nil {
		result.Response.Status = 200
	}

	return result, nil
}

// handlePaymentRequest fetches the resource server, matches the request
// against its route table, and runs the verify flow (spec.md §4.6).
// pathOverride, when non-empty, replaces adapter.Path() — used by the MCP
// call-method branch to match against a synthetic route key.
func (d *Dispatcher) handlePaymentRequest(ctx context.Context, adapter types.RequestAdapter, metadata types.RequestMetadata, pathOverride string) (types.ProcessRequestResult, error) {
	server, err := d.Servers.Get(ctx)
	if err != nil {
		return types.ProcessRequestResult{}, err
	}
	if server == nil {
		return noPaymentRequired(metadata), nil
	}

	path := pathOverride
	if path == "" {
		path = adapter.Path()
	}
	paymentHeader := adapter.Header("PAYMENT-SIGNATURE")
	if paymentHeader == "" {
		paymentHeader = adapter.Header("X-PAYMENT")
	}

	reqCtx := resourceserver.HTTPRequestContext{Method: adapter.Method(), Path: path, PaymentHeader: paymentHeader}
	if !server.RequiresPayment(reqCtx.Method, reqCtx.Path) {
		return noPaymentRequired(metadata), nil
	}

	result, err := server.ProcessHTTPRequestWithRestriction(ctx, reqCtx)
	if err != nil {
		return types.ProcessRequestResult{}, err
	}
	result.Metadata = metadata

	if result.Type == types.ResultPaymentError {
		if result.Restriction != nil && result.Restriction.Price == 0 {
			d.Events.LogEvent(ctx, adapter, 200, metadata.RequestID, "")
			return noPaymentRequired(metadata), nil
		}
		status := 402
		if result.Response != nil {
			status = result.Response.Status
		}
		d.Events.LogEvent(ctx, adapter, status, metadata.RequestID, "")
	}

	return result, nil
}

// ProcessSettlement runs the post-upstream settlement flow (spec.md §4.9).
// A panic inside it is recovered, reported asynchronously, and turned into
// an unsuccessful settle result.
func (d *Dispatcher) ProcessSettlement(ctx context.Context, adapter types.RequestAdapter, paymentPayload, paymentRequirements []byte, upstreamStatusCode int, requestID string) (result types.ProcessSettleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.reportFailure(ctx, adapter, fmt.Errorf("panic in ProcessSettlement: %v", r))
			result, err = types.ProcessSettleResult{Success: false, ErrorReason: "Settlement failed"}, nil
		}
	}()

	server, err := d.Servers.Get(ctx)
	if err != nil {
		return types.ProcessSettleResult{}, err
	}
	if server == nil {
		return types.ProcessSettleResult{Success: false, ErrorReason: "Server not initialized"}, nil
	}

	if upstreamStatusCode >= 400 {
		d.Events.LogEvent(ctx, adapter, upstreamStatusCode, requestID, "")
		return types.ProcessSettleResult{Success: false, ErrorReason: "Upstream error"}, nil
	}

	result, err = server.Settle(ctx, paymentPayload, paymentRequirements)
	if err != nil {
		return types.ProcessSettleResult{}, err
	}

	if result.Success {
		d.Events.LogEvent(ctx, adapter, upstreamStatusCode, requestID, result.Headers["PAYMENT-RESPONSE"])
	} else {
		d.Events.LogEvent(ctx, adapter, 402, requestID, "")
	}

	return result, nil
}
