package paywall

import (
	"strings"
	"testing"

	"github.com/foldset/gateway-core/types"
)

func TestGenerateGroupsByNetworkPreservingOrder(t *testing.T) {
	restriction := types.Restriction{Description: "Premium article", Price: 0.5, Scheme: "exact"}
	methods := []types.PaymentMethod{
		{Caip2ID: "eip155:8453", ChainDisplayName: "Base", AssetDisplayName: "USDC", PayToWalletAddress: "0xabc"},
		{Caip2ID: "solana:mainnet", ChainDisplayName: "Solana", AssetDisplayName: "USDC", PayToWalletAddress: "SoL123"},
		{Caip2ID: "eip155:8453", ChainDisplayName: "Base", AssetDisplayName: "USDT", PayToWalletAddress: "0xabc"},
	}

	html := Generate(restriction, methods, "https://example.com/article", "")

	baseIdx := strings.Index(html, "eip155:8453")
	solIdx := strings.Index(html, "solana:mainnet")
	if baseIdx == -1 || solIdx == -1 {
		t.Fatal("expected both networks to appear")
	}
	if baseIdx > solIdx {
		t.Error("expected eip155 card to appear before solana card (first-occurrence order)")
	}
	if strings.Count(html, "eip155:8453") != 1 {
		t.Error("expected eip155 network to appear in exactly one card header")
	}
	if !strings.Contains(html, "USDC") || !strings.Contains(html, "USDT") {
		t.Error("expected both USDC and USDT token rows under the Base card")
	}
	if !strings.Contains(html, "Premium article") {
		t.Error("expected restriction description in output")
	}
}

func TestGenerateOmitsTermsOfServiceRowWhenEmpty(t *testing.T) {
	html := Generate(types.Restriction{}, nil, "https://example.com", "")
	if strings.Contains(html, "Terms of Service") {
		t.Error("did not expect a terms-of-service row")
	}
}

func TestGenerateIncludesTermsOfServiceRowWhenSet(t *testing.T) {
	html := Generate(types.Restriction{}, nil, "https://example.com", "https://example.com/tos")
	if !strings.Contains(html, "https://example.com/tos") {
		t.Error("expected terms-of-service link in output")
	}
}

func TestCapitalize(t *testing.T) {
	if got := capitalize("exact"); got != "Exact" {
		t.Errorf("capitalize(exact) = %q, want Exact", got)
	}
	if got := capitalize(""); got != "" {
		t.Errorf("capitalize(\"\") = %q, want empty", got)
	}
}
