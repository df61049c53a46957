// Package svm implements the "exact" scheme server for Solana (SVM)
// networks, registered into the resource server for solana:* CAIP-2
// networks. Address validation uses gagliardetto/solana-go's base58 public
// key parsing, matching the SVM exact scheme servers in mark3labs-x402-go
// and sragss-x402/go/mechanisms/svm.
package svm

import (
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"
)

// Scheme is the scheme name this mechanism implements.
const Scheme = "exact"

// NetworkPrefix is the CAIP-2 namespace this mechanism handles.
const NetworkPrefix = "solana:"

// Server validates SVM-exact payment method addresses before they are
// published in route tables or the paywall.
type Server struct{}

// NewServer builds the SVM-exact scheme server.
func NewServer() *Server { return &Server{} }

// Supports reports whether network falls under this mechanism's namespace.
func (*Server) Supports(network string) bool {
	return strings.HasPrefix(network, NetworkPrefix)
}

// ValidateAddress checks that address base58-decodes to a 32-byte Solana
// public key.
func (*Server) ValidateAddress(address string) error {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return fmt.Errorf("invalid solana address: %w", err)
	}
	if pub.IsZero() {
		return fmt.Errorf("invalid solana address: %q is the zero key", address)
	}
	return nil
}
