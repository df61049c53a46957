package dispatch

import (
	"encoding/json"

	"github.com/foldset/gateway-core/paywall"
	"github.com/foldset/gateway-core/types"
)

type apiPaymentMethodOut struct {
	Network   string `json:"network"`
	Asset     string `json:"asset"`
	Decimals  int    `json:"decimals"`
	PayTo     string `json:"pay_to"`
	Chain     string `json:"chain"`
	AssetName string `json:"asset_name"`
}

// formatAPIPaymentError shapes result.Response as the JSON 402 body for an
// Api restriction (spec.md §4.6, API formatter).
func formatAPIPaymentError(result *types.ProcessRequestResult, restriction types.Restriction, paymentMethods []types.PaymentMethod, termsOfServiceURL string) {
	body := map[string]any{
		"error":      "payment_required",
		"version":    result.Metadata.Version,
		"request_id": result.Metadata.RequestID,
		"timestamp":  result.Metadata.Timestamp,
		"message":    restriction.Description,
		"price":      restriction.Price,
	}
	if termsOfServiceURL != "" {
		body["terms_of_service_url"] = termsOfServiceURL
	}
	methods := make([]apiPaymentMethodOut, 0, len(paymentMethods))
	for _, pm := range paymentMethods {
		methods = append(methods, apiPaymentMethodOut{
			Network: pm.Caip2ID, Asset: pm.ContractAddress, Decimals: pm.Decimals,
			PayTo: pm.PayToWalletAddress, Chain: pm.ChainDisplayName, AssetName: pm.AssetDisplayName,
		})
	}
	body["payment_methods"] = methods

	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	if result.Response == nil {
		result.Response = &types.Response{Status: 402}
	}
	result.Response.Body = string(raw)
	if result.Response.Headers == nil {
		result.Response.Headers = map[string]string{}
	}
	result.Response.Headers["Content-Type"] = "application/json"
}

// formatWebPaymentError shapes result.Response as the rendered paywall HTML
// for a Web restriction (spec.md §4.6, Web formatter).
func formatWebPaymentError(result *types.ProcessRequestResult, restriction types.Restriction, paymentMethods []types.PaymentMethod, adapter types.RequestAdapter, termsOfServiceURL string) {
	html := paywall.Generate(restriction, paymentMethods, adapter.URL(), termsOfServiceURL)
	if result.Response == nil {
		result.Response = &types.Response{Status: 402}
	}
	result.Response.Body = html
	if result.Response.Headers == nil {
		result.Response.Headers = map[string]string{}
	}
	result.Response.Headers["Content-Type"] = "text/html"
}
