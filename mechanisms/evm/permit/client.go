package permit

import (
	"context"
	"fmt"
	"math/big"
	"time"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/evm"
)

// ContractReader reads view functions from a contract. Signers that can talk
// to an RPC node (e.g. signers/evm with an ethclient) implement this; the
// client uses it to fetch the on-chain permit nonce.
type ContractReader interface {
	ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error)
}

// PermitEvmClient implements the SchemeNetworkClient interface for EIP-2612
// permit payments.
type PermitEvmClient struct {
	signer evm.ClientEvmSigner
}

// NewPermitEvmClient creates a new PermitEvmClient
func NewPermitEvmClient(signer evm.ClientEvmSigner) *PermitEvmClient {
	return &PermitEvmClient{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (c *PermitEvmClient) Scheme() string {
	return SchemePermit
}

// CreatePaymentPayload builds and signs a Permit message for the requirements.
// The spender comes from requirements.Extra["spender"] (stamped by the
// facilitator via getExtra), falling back to payTo when the requirements were
// built without a facilitator.
func (c *PermitEvmClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 2 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("permit only supports x402 version 2, got %d", version)
	}

	networkStr := string(requirements.Network)
	config, err := evm.GetNetworkConfig(networkStr)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	assetInfo, err := evm.GetAssetInfo(networkStr, requirements.Asset)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	tokenName := assetInfo.Name
	tokenVersion := assetInfo.Version
	spender := requirements.PayTo
	if requirements.Extra != nil {
		if name, ok := requirements.Extra["name"].(string); ok {
			tokenName = name
		}
		if version, ok := requirements.Extra["version"].(string); ok {
			tokenVersion = version
		}
		if s, ok := requirements.Extra["spender"].(string); ok && s != "" {
			spender = s
		}
	}

	owner := c.signer.Address()

	nonce, err := c.fetchNonce(ctx, assetInfo.Address, owner)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to fetch permit nonce: %w", err)
	}

	timeout := requirements.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = 300
	}
	deadline := big.NewInt(time.Now().Unix() + int64(timeout))

	value, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid amount: %s", requirements.Amount)
	}

	domain := evm.TypedDataDomain{
		Name:              tokenName,
		Version:           tokenVersion,
		ChainID:           config.ChainID,
		VerifyingContract: assetInfo.Address,
	}

	message := map[string]interface{}{
		"owner":    owner,
		"spender":  spender,
		"value":    value,
		"nonce":    nonce,
		"deadline": deadline,
	}

	signature, err := c.signer.SignTypedData(ctx, domain, evm.GetEIP2612EIP712Types(), "Permit", message)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to sign permit: %w", err)
	}

	payload := PermitPayload{
		Signature: evm.BytesToHex(signature),
		Permit: PermitAuthorization{
			Owner:    owner,
			Spender:  spender,
			Value:    value.String(),
			Nonce:    nonce.String(),
			Deadline: deadline.String(),
			Domain: PermitDomain{
				Name:              tokenName,
				Version:           tokenVersion,
				ChainID:           config.ChainID.String(),
				VerifyingContract: assetInfo.Address,
			},
		},
	}

	return x402.PartialPaymentPayload{
		X402Version: 2,
		Payload:     payload.ToMap(),
	}, nil
}

// fetchNonce queries the token's nonces(owner).
func (c *PermitEvmClient) fetchNonce(ctx context.Context, tokenAddress, owner string) (*big.Int, error) {
	reader, ok := c.signer.(ContractReader)
	if !ok {
		// No RPC access: nonce 0 only matches accounts that never permitted.
		return big.NewInt(0), nil
	}

	result, err := reader.ReadContract(ctx, tokenAddress, evm.EIP2612NoncesABI, "nonces", owner)
	if err != nil {
		return nil, err
	}

	nonce, ok := result.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from nonces")
	}
	return nonce, nil
}
