// Command gateway is a minimal demo host: it bootstraps a Dispatcher from
// an API key, wraps a net/http handler with the payment-gate decision
// pipeline, and forwards paid/pass-through requests to an upstream handler.
// Concrete framework adapters are out of scope for the core (spec.md §1) —
// this file is the reference wiring, the way main.go in
// kshinn-umbra-gateway wires config → proxy → middleware.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/foldset/gateway-core/bootstrap"
	"github.com/foldset/gateway-core/config"
	"github.com/foldset/gateway-core/dispatch"
	"github.com/foldset/gateway-core/httpadapter"
	"github.com/foldset/gateway-core/types"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	opts := bootstrap.Options{
		APIKey:       cfg.APIKey,
		APIBaseURL:   cfg.APIBaseURL,
		Platform:     cfg.Platform,
		SDKVersion:   cfg.SDKVersion,
		Version:      cfg.CoreVersion,
		APIKeySecret: cfg.APIKeySecret,
	}
	if cfg.HasRedisOverride() {
		opts.RedisCredentials = &bootstrap.Credentials{
			URL: cfg.RedisURL, Token: cfg.RedisToken, TenantID: cfg.RedisTenantID,
		}
	}

	core, err := bootstrap.FromOptions(ctx, opts)
	if err != nil {
		slog.Error("bootstrap failed", "err", err)
		os.Exit(1)
	}
	defer core.Close()

	// ISSUE_API_KEY_FOR is an ops convenience: when set alongside
	// API_KEY_JWT_SECRET, the worker mints one API key for that subject at
	// startup and logs it, so an operator can seed the first client
	// credential without a separate issuance endpoint.
	if core.APIKeyValidator != nil {
		if subject := os.Getenv("ISSUE_API_KEY_FOR"); subject != "" {
			token, err := core.APIKeyValidator.Issue(subject, os.Getenv("ISSUE_API_KEY_SCOPE"), cfg.APIKeyTTL)
			if err != nil {
				slog.Error("issuing api key failed", "err", err, "subject", subject)
			} else {
				slog.Info("issued api key", "subject", subject, "token", token)
			}
		}
	}

	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	handler := newPaymentGate(core, upstream)

	addr := ":" + strconv.Itoa(cfg.Port)
	slog.Info("gateway starting", "addr", addr, "platform", cfg.Platform)

	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// newPaymentGate wraps upstream with the request-decision pipeline: every
// request is classified by the dispatcher; a 402 result short-circuits the
// response, anything else passes through to upstream, after which
// settlement is attempted for payment-verified requests.
func newPaymentGate(core *bootstrap.Core, upstream http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if core.APIKeyValidator != nil && r.URL.Path != dispatch.HealthPath && !authorizeAPIKey(core.APIKeyValidator, r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing or invalid api key"}`))
			return
		}

		adapter, err := httpadapter.New(r)
		if err != nil {
			slog.Error("adapter error, failing open", "err", err)
			upstream.ServeHTTP(w, r)
			return
		}

		result, err := core.Dispatcher.ProcessRequest(r.Context(), adapter)
		if err != nil {
			// ProcessRequest fails open internally; a returned error here
			// means something is badly wrong with the dispatcher itself.
			slog.Error("dispatcher error, failing open", "err", err)
			upstream.ServeHTTP(w, r)
			return
		}

		if result.Response != nil && (result.Type == types.ResultPaymentError || result.Type == types.ResultHealthCheck) {
			writeResponse(w, result.Response)
			return
		}

		for k, v := range result.Headers {
			w.Header().Set(k, v)
		}

		rec := newRecorder(w)
		upstream.ServeHTTP(rec, r)

		if result.PaymentPayload != nil {
			settleResult, err := core.Dispatcher.ProcessSettlement(
				r.Context(), adapter, result.PaymentPayload, result.PaymentRequirements, rec.status, result.Metadata.RequestID,
			)
			if err != nil {
				slog.Error("settlement error", "err", err)
			} else if !settleResult.Success {
				slog.Warn("settlement failed", "reason", settleResult.ErrorReason)
			} else if v, ok := settleResult.Headers["PAYMENT-RESPONSE"]; ok {
				w.Header().Set("PAYMENT-RESPONSE", v)
			}
		}
	})
}

// authorizeAPIKey reports whether r carries a valid operator API key as an
// "Authorization: Bearer <jwt>" header. Only called when the worker was
// configured with an API_KEY_JWT_SECRET; it gates access to the gateway
// itself, separate from the x402 payment headers the dispatcher checks per
// restricted route.
func authorizeAPIKey(v *bootstrap.APIKeyValidator, r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	_, err := v.Validate(token)
	return err == nil
}

func writeResponse(w http.ResponseWriter, resp *types.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
}

// statusRecorder captures the upstream handler's status code so settlement
// can apply the "upstream >= 400 skips settlement" rule (spec.md §4.9).
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
