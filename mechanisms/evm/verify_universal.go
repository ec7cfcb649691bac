package evm

import (
	"bytes"
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Signature kinds returned by VerifyUniversalSignature.
const (
	SignatureKindEOA     = "eoa"
	SignatureKindEIP1271 = "eip1271"
	SignatureKindERC6492 = "erc6492"
)

// VerifyUniversalSignature verifies a signature of any supported kind: plain
// ECDSA from an EOA, EIP-1271 from a deployed smart wallet, or ERC-6492 from
// a counterfactual wallet. Verification goes through the on-chain
// UniversalSigValidator, which handles all three cases atomically.
//
// For plain 65-byte EOA signatures a local ecrecover is used as a fallback
// when the validator contract is unavailable on the network.
//
// Returns (valid, kind, error) where kind is one of the SignatureKind values.
func VerifyUniversalSignature(
	ctx context.Context,
	signer FacilitatorEvmSigner,
	signerAddress string,
	hash [32]byte,
	signature []byte,
	checkDeployment bool,
) (bool, string, error) {
	kind := SignatureKindEOA
	if IsERC6492Signature(signature) {
		kind = SignatureKindERC6492
	} else if checkDeployment {
		code, err := signer.GetCode(ctx, signerAddress)
		if err == nil && len(code) > 0 {
			kind = SignatureKindEIP1271
		}
	}

	valid, err := VerifyERC6492Signature(ctx, signer, signerAddress, hash, signature)
	if err == nil {
		return valid, kind, nil
	}

	// Validator unavailable. Plain EOA signatures can still be checked locally.
	if kind == SignatureKindEOA && len(signature) == 65 {
		recovered, recErr := recoverSigner(hash, signature)
		if recErr != nil {
			return false, kind, recErr
		}
		return strings.EqualFold(recovered, signerAddress), kind, nil
	}

	return false, kind, err
}

// recoverSigner recovers the signing address from a 65-byte ECDSA signature.
func recoverSigner(hash [32]byte, signature []byte) (string, error) {
	sig := bytes.Clone(signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKey, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}
