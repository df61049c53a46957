// Package resourceserver implements the ResourceServer wrapper (spec.md
// §4.4) and its TTL-cached builder, HttpServerManager (spec.md §4.8): route
// matching by regex + verb, 402 header construction, and payment
// verification/settlement routed through a FacilitatorClient.
package resourceserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/foldset/gateway-core/types"
)

// VerifyResult is the outcome of a facilitator Verify call.
type VerifyResult struct {
	IsValid       bool
	Payer         string
	InvalidReason string
}

// SettleResult is the outcome of a facilitator Settle call.
type SettleResult struct {
	Success     bool
	ErrorReason string
	// Headers carries facilitator-returned response headers, notably
	// PAYMENT-RESPONSE (spec.md §6).
	Headers map[string]string
}

// FacilitatorClient verifies and settles x402 payments. This is the opaque
// external collaborator named in spec.md §1 — the core never performs
// on-chain verification itself.
type FacilitatorClient interface {
	Verify(ctx context.Context, paymentHeader string, requirements []byte) (VerifyResult, error)
	Settle(ctx context.Context, paymentPayload, requirements []byte) (SettleResult, error)
}

// HTTPFacilitator talks to a remote x402 facilitator over HTTPS. Adapted
// from kshinn-umbra-gateway/x402/facilitator.go's RemoteFacilitator: same
// POST /verify + POST /settle shape, but driven by the KV-sourced
// FacilitatorConfig (url + optional per-call header groups) instead of a
// bare URL string.
type HTTPFacilitator struct {
	cfg    types.FacilitatorConfig
	client *http.Client
}

// NewHTTPFacilitator builds an HTTPFacilitator from a FacilitatorConfig.
// VerifyHeaders are attached to the /verify request and SettleHeaders to the
// /settle request; SupportedHeaders are not sent, since the client makes no
// supported-schemes request.
func NewHTTPFacilitator(cfg types.FacilitatorConfig) *HTTPFacilitator {
	return &HTTPFacilitator{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *HTTPFacilitator) Verify(ctx context.Context, paymentHeader string, requirements []byte) (VerifyResult, error) {
	var resp struct {
		IsValid       bool   `json:"isValid"`
		InvalidReason string `json:"invalidReason"`
		Payer         string `json:"payer"`
	}
	body, err := json.Marshal(map[string]any{
		"x402Version":         1,
		"paymentPayload":      paymentHeader,
		"paymentRequirements": json.RawMessage(requirements),
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("marshaling verify body: %w", err)
	}
	if err := f.post(ctx, "/verify", body, f.cfg.VerifyHeaders, &resp); err != nil {
		return VerifyResult{}, fmt.Errorf("facilitator verify: %w", err)
	}
	return VerifyResult{IsValid: resp.IsValid, Payer: resp.Payer, InvalidReason: resp.InvalidReason}, nil
}

func (f *HTTPFacilitator) Settle(ctx context.Context, paymentPayload, requirements []byte) (SettleResult, error) {
	var resp struct {
		Success      bool              `json:"success"`
		ErrorReason  string            `json:"errorReason"`
		ResponseHeader string          `json:"paymentResponse"`
		Headers      map[string]string `json:"headers"`
	}
	body, err := json.Marshal(map[string]any{
		"x402Version":         1,
		"paymentPayload":      json.RawMessage(paymentPayload),
		"paymentRequirements": json.RawMessage(requirements),
	})
	if err != nil {
		return SettleResult{}, fmt.Errorf("marshaling settle body: %w", err)
	}
	if err := f.post(ctx, "/settle", body, f.cfg.SettleHeaders, &resp); err != nil {
		return SettleResult{}, fmt.Errorf("facilitator settle: %w", err)
	}
	headers := resp.Headers
	if resp.ResponseHeader != "" {
		if headers == nil {
			headers = map[string]string{}
		}
		headers["PAYMENT-RESPONSE"] = resp.ResponseHeader
	}
	return SettleResult{Success: resp.Success, ErrorReason: resp.ErrorReason, Headers: headers}, nil
}

func (f *HTTPFacilitator) post(ctx context.Context, path string, body []byte, extraHeaders map[string]string, dst any) error {
	url := f.cfg.URL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	slog.Debug("facilitator response", "url", url, "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("facilitator returned %d: %s", resp.StatusCode, respBody)
	}
	return json.Unmarshal(respBody, dst)
}
