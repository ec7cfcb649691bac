package aptos

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	aptossdk "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"

	x402 "github.com/x402labs/x402-go"
)

// ExactAptosClient implements the SchemeNetworkClient interface for the exact
// scheme on Aptos. It builds a fungible asset transfer, signs it, and ships
// the raw transaction plus the sender authenticator to the facilitator.
type ExactAptosClient struct {
	signer ClientAptosSigner
}

// NewExactAptosClient creates a new ExactAptosClient
func NewExactAptosClient(signer ClientAptosSigner) *ExactAptosClient {
	return &ExactAptosClient{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (c *ExactAptosClient) Scheme() string {
	return SchemeExact
}

// CreatePaymentPayload creates a signed payment payload for the given requirements
func (c *ExactAptosClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 2 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("aptos exact scheme only supports x402 version 2, got %d", version)
	}

	networkStr := string(requirements.Network)
	config, ok := GetNetworkConfig(networkStr)
	if !ok {
		return x402.PartialPaymentPayload{}, fmt.Errorf("unsupported network: %s", networkStr)
	}

	amount, err := strconv.ParseUint(requirements.Amount, 10, 64)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid amount %q: %w", requirements.Amount, err)
	}

	asset := requirements.Asset
	if asset == "" {
		asset = config.DefaultAsset.MetadataAddress
	}
	metadataAddr, err := parseAddress(asset)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	recipient, err := parseAddress(requirements.PayTo)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	sender, err := parseAddress(c.signer.AccountAddress())
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	sequenceNumber, err := c.signer.SequenceNumber(ctx)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to fetch sequence number: %w", err)
	}

	timeout := requirements.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = 300
	}

	rawTxn, err := buildTransferTransaction(
		sender,
		sequenceNumber,
		metadataAddr,
		recipient,
		amount,
		config.ChainID,
		uint64(time.Now().Unix())+uint64(timeout),
	)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	auth, err := c.signer.SignTransaction(ctx, rawTxn)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	txnBytes, err := bcs.Serialize(rawTxn)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	authBytes, err := bcs.Serialize(auth)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to serialize authenticator: %w", err)
	}

	payload := &ExactAptosPayload{
		Transaction:         base64.StdEncoding.EncodeToString(txnBytes),
		SenderAuthenticator: base64.StdEncoding.EncodeToString(authBytes),
	}

	return x402.PartialPaymentPayload{
		X402Version: 2,
		Payload:     payload.ToMap(),
	}, nil
}

// buildTransferTransaction assembles a primary_fungible_store::transfer raw
// transaction for a fungible asset.
func buildTransferTransaction(
	sender aptossdk.AccountAddress,
	sequenceNumber uint64,
	metadataAddr aptossdk.AccountAddress,
	recipient aptossdk.AccountAddress,
	amount uint64,
	chainID uint8,
	expirationTimestampSeconds uint64,
) (*aptossdk.RawTransaction, error) {
	amountBytes, err := bcs.SerializeU64(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize amount: %w", err)
	}

	entry := &aptossdk.EntryFunction{
		Module: aptossdk.ModuleId{
			Address: aptossdk.AccountOne,
			Name:    ModulePrimaryFungibleStore,
		},
		Function: FunctionTransfer,
		ArgTypes: []aptossdk.TypeTag{
			{Value: &aptossdk.StructTag{
				Address: aptossdk.AccountOne,
				Module:  ModuleFungibleAsset,
				Name:    "Metadata",
			}},
		},
		Args: [][]byte{
			metadataAddr[:],
			recipient[:],
			amountBytes,
		},
	}

	return &aptossdk.RawTransaction{
		Sender:                     sender,
		SequenceNumber:             sequenceNumber,
		Payload:                    aptossdk.TransactionPayload{Payload: entry},
		MaxGasAmount:               DefaultMaxGasAmount,
		GasUnitPrice:               DefaultGasUnitPrice,
		ExpirationTimestampSeconds: expirationTimestampSeconds,
		ChainId:                    chainID,
	}, nil
}
