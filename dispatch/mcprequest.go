package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/foldset/gateway-core/mcp"
	"github.com/foldset/gateway-core/types"
)

// requestBody extracts raw JSON bytes from whatever adapter.Body returns —
// either the already-read raw bytes, or a value that needs re-marshaling
// (e.g. a framework that decodes the body for you).
func requestBody(ctx context.Context, adapter types.RequestAdapter) (json.RawMessage, error) {
	body, err := adapter.Body(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return json.RawMessage(v), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshaling decoded body: %w", err)
		}
		return raw, nil
	}
}

// handleMCPRequest is the MCP sub-pipeline entry point (spec.md §4.7).
func (d *Dispatcher) handleMCPRequest(ctx context.Context, adapter types.RequestAdapter, mcpEndpoint string, metadata types.RequestMetadata) (types.ProcessRequestResult, error) {
	if adapter.Method() != http.MethodPost {
		return noPaymentRequired(metadata), nil
	}

	body, err := requestBody(ctx, adapter)
	if err != nil || len(body) == 0 {
		return noPaymentRequired(metadata), nil
	}

	rpc, err := mcp.ParseRequest(body)
	if err != nil {
		return types.ProcessRequestResult{}, err
	}
	if rpc == nil {
		return noPaymentRequired(metadata), nil
	}

	if mcp.IsListMethod(rpc.Method) {
		return d.handleMCPListRequest(ctx, adapter, rpc, metadata)
	}

	routeKey, ok := mcp.RouteKeyFromParams(mcpEndpoint, rpc.Method, rpc.Params)
	if !ok {
		return noPaymentRequired(metadata), nil
	}

	result, err := d.handlePaymentRequest(ctx, adapter, metadata, routeKey)
	if err != nil {
		return types.ProcessRequestResult{}, err
	}

	if result.Type == types.ResultPaymentError {
		paymentMethods, err := d.PaymentMethods.Get(ctx)
		if err != nil {
			return types.ProcessRequestResult{}, err
		}
		hostConfig, err := d.HostConfig.Get(ctx)
		if err != nil {
			return types.ProcessRequestResult{}, err
		}
		tos := ""
		if hostConfig != nil {
			tos = hostConfig.TermsOfServiceURL
		}
		if err := mcp.FormatCallPaymentError(&result, rpc.ID, paymentMethods, tos); err != nil {
			return types.ProcessRequestResult{}, err
		}
	}

	return result, nil
}

func (d *Dispatcher) handleMCPListRequest(ctx context.Context, adapter types.RequestAdapter, rpc *mcp.Request, metadata types.RequestMetadata) (types.ProcessRequestResult, error) {
	restrictions, err := d.Restrictions.Get(ctx)
	if err != nil {
		return types.ProcessRequestResult{}, err
	}
	paymentMethods, err := d.PaymentMethods.Get(ctx)
	if err != nil {
		return types.ProcessRequestResult{}, err
	}
	hostConfig, err := d.HostConfig.Get(ctx)
	if err != nil {
		return types.ProcessRequestResult{}, err
	}

	requirements := mcp.ListPaymentRequirements(rpc.Method, restrictions, paymentMethods)

	headers := map[string]string{}
	if len(requirements) > 0 {
		tos := ""
		if hostConfig != nil {
			tos = hostConfig.TermsOfServiceURL
		}
		headerVal, err := mcp.ListPaymentRequiredHeader(requirements, tos)
		if err != nil {
			return types.ProcessRequestResult{}, err
		}
		if headerVal != "" {
			headers["Payment-Required"] = headerVal
		}
	}

	d.Events.LogEvent(ctx, adapter, 200, metadata.RequestID, "")
	return types.ProcessRequestResult{Type: types.ResultNoPaymentRequired, Headers: headers, Metadata: metadata}, nil
}
