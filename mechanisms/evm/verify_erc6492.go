package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// VerifyERC6492Signature verifies an ERC-6492 counterfactual signature by calling the
// ERC-6492 UniversalSigValidator contract via eth_call (no state changes committed).
// The validator atomically simulates the factory deployment then verifies the inner
// signature using EIP-1271 isValidSignature on the resulting contract.
//
// Returns false (not an error) if the validator returns false.
// Returns false + error if the validator contract is unavailable or the call fails.
func VerifyERC6492Signature(
	ctx context.Context,
	facilitatorSigner FacilitatorEvmSigner,
	signerAddress string,
	hash [32]byte,
	signature []byte,
) (bool, error) {
	signerAddr := common.HexToAddress(signerAddress)
	result, err := facilitatorSigner.ReadContract(
		ctx,
		UniversalSigValidatorAddress,
		UniversalSigValidatorABI,
		"isValidSig",
		signerAddr,
		hash,
		signature,
	)
	if err != nil {
		return false, err
	}
	valid, ok := result.(bool)
	if !ok {
		return false, nil
	}
	return valid, nil
}

// ParseERC6492Signature decodes an ERC-6492 wrapped signature into its
// factory address, deployment calldata, and inner signature. The wrapper is
// abi.encode(address, bytes, bytes) followed by the 32-byte magic suffix.
func ParseERC6492Signature(signature []byte) (*ERC6492SignatureData, error) {
	if !IsERC6492Signature(signature) {
		return nil, fmt.Errorf("not an ERC-6492 signature")
	}
	wrapped := signature[:len(signature)-32]

	addressType, _ := abi.NewType("address", "", nil)
	bytesType, _ := abi.NewType("bytes", "", nil)
	args := abi.Arguments{
		{Type: addressType},
		{Type: bytesType},
		{Type: bytesType},
	}

	decoded, err := args.Unpack(wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ERC-6492 wrapper: %w", err)
	}
	if len(decoded) != 3 {
		return nil, fmt.Errorf("unexpected ERC-6492 wrapper arity")
	}

	factory, ok := decoded[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid ERC-6492 factory address")
	}
	factoryCalldata, ok := decoded[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid ERC-6492 factory calldata")
	}
	innerSignature, ok := decoded[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid ERC-6492 inner signature")
	}

	return &ERC6492SignatureData{
		Factory:         [20]byte(factory),
		FactoryCalldata: factoryCalldata,
		InnerSignature:  innerSignature,
	}, nil
}
