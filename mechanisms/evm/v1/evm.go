// Package v1 provides the V1 implementation of the EVM mechanism for x402
package v1

import (
	"errors"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/evm"
)

// RegisterClient registers the V1 EVM client with an x402 client for all
// supported legacy networks
func RegisterClient(client *x402.X402Client, signer evm.ClientEvmSigner) *x402.X402Client {
	evmClient := NewExactEvmClientV1(signer)
	for _, network := range Networks {
		client.RegisterSchemeV1(x402.Network(network), evmClient)
	}
	return client
}

// RegisterFacilitator registers the V1 EVM facilitator with an x402 facilitator
// for all supported legacy networks
func RegisterFacilitator(facilitator *x402.X402Facilitator, signer evm.FacilitatorEvmSigner) error {
	evmFacilitator := NewExactEvmFacilitatorV1(signer)
	for _, network := range Networks {
		err := facilitator.RegisterV1(x402.Network(network), evmFacilitator)
		if err != nil && !errors.Is(err, x402.ErrAlreadyRegistered) {
			return err
		}
	}
	return nil
}

// RegisterServer returns the options to register the V1 EVM server with an
// x402 resource server
func RegisterServer() []x402.ResourceServerOption {
	evmServer := NewExactEvmServerV1()
	opts := make([]x402.ResourceServerOption, 0, len(Networks))
	for _, network := range Networks {
		opts = append(opts, x402.WithSchemeServer(x402.Network(network), evmServer))
	}
	return opts
}
