// Package evm implements the "exact" scheme server for EIP-155 (EVM)
// networks, registered into the resource server for eip155:* CAIP-2
// networks. It validates addresses using go-ethereum rather than hand
// rolling hex/checksum parsing, matching the address handling in
// kshinn-umbra-gateway/x402/local_facilitator.go and the EVM exact scheme
// servers in mark3labs-x402-go / sragss-x402.
package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Scheme is the scheme name this mechanism implements.
const Scheme = "exact"

// NetworkPrefix is the CAIP-2 namespace this mechanism handles.
const NetworkPrefix = "eip155:"

// Server validates EVM-exact payment method addresses before they are
// published in route tables or the paywall.
type Server struct{}

// NewServer builds the EVM-exact scheme server.
func NewServer() *Server { return &Server{} }

// Supports reports whether network falls under this mechanism's namespace.
func (*Server) Supports(network string) bool {
	return strings.HasPrefix(network, NetworkPrefix)
}

// ValidateAddress checks that address is a well-formed 20-byte hex Ethereum
// address (EIP-55 checksum is not enforced — operators may submit
// lowercase addresses).
func (*Server) ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid evm address: %q", address)
	}
	return nil
}

// NormalizeAddress returns the EIP-55 checksummed form of address.
func (*Server) NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid evm address: %q", address)
	}
	return common.HexToAddress(address).Hex(), nil
}
