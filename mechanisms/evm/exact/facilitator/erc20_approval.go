package facilitator

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/x402labs/x402-go/extensions/erc20approvalgassponsor"
	"github.com/x402labs/x402-go/mechanisms/evm"
)

// validateErc20ApprovalForPayment validates the ERC-20 approval gas sponsoring
// extension data against the payment being settled. The signed transaction must
// be an approve(Permit2, amount) call on the payment token, signed by the payer
// on the payment chain.
//
// Returns an empty string if valid, or an error reason constant.
func validateErc20ApprovalForPayment(
	ctx context.Context,
	signer evm.FacilitatorEvmSigner,
	info *erc20approvalgassponsor.Info,
	payer string,
	tokenAddress string,
	chainID *big.Int,
) string {
	if !erc20approvalgassponsor.ValidateInfo(info) {
		return ErrErc20InvalidSignedTx
	}

	if !strings.EqualFold(info.Asset, tokenAddress) {
		return ErrErc20TokenMismatch
	}

	if !strings.EqualFold(info.From, payer) {
		return ErrErc20SignerMismatch
	}

	if !strings.EqualFold(info.Spender, evm.PERMIT2Address) {
		return ErrErc20SpenderNotPermit2
	}

	tx, err := decodeSignedTx(info.SignedTransaction)
	if err != nil {
		return ErrErc20InvalidSignedTx
	}

	if tx.To() == nil || !strings.EqualFold(tx.To().Hex(), tokenAddress) {
		return ErrErc20TokenMismatch
	}

	if chainID != nil && tx.ChainId().Cmp(chainID) != 0 {
		return ErrErc20InvalidSignedTx
	}

	data := tx.Data()
	selector, _ := evm.HexToBytes(evm.ERC20ApproveFunctionSelector)
	if len(data) < 36 {
		return ErrErc20InvalidCalldata
	}
	for i, b := range selector {
		if data[i] != b {
			return ErrErc20InvalidCalldata
		}
	}

	calldataSpender := common.BytesToAddress(data[4:36])
	if !strings.EqualFold(calldataSpender.Hex(), evm.PERMIT2Address) {
		return ErrErc20SpenderNotPermit2
	}

	txSigner := ethTypes.LatestSignerForChainID(tx.ChainId())
	from, err := ethTypes.Sender(txSigner, tx)
	if err != nil {
		return ErrErc20InvalidSignedTx
	}
	if !strings.EqualFold(from.Hex(), payer) {
		return ErrErc20SignerMismatch
	}

	return ""
}

// extractCalldataFromSignedTx decodes an RLP-encoded signed transaction and
// returns its calldata. Used to rebuild the approve call for the batch
// transaction that lands the approval and the Permit2 settle together.
func extractCalldataFromSignedTx(signedTx string) ([]byte, error) {
	tx, err := decodeSignedTx(signedTx)
	if err != nil {
		return nil, err
	}
	return tx.Data(), nil
}

// decodeSignedTx hex-decodes and RLP-decodes a signed transaction.
func decodeSignedTx(signedTx string) (*ethTypes.Transaction, error) {
	txHex := strings.TrimPrefix(signedTx, "0x")
	txBytes, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("failed to hex-decode signed transaction: %w", err)
	}

	tx := new(ethTypes.Transaction)
	if err := tx.UnmarshalBinary(txBytes); err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	return tx, nil
}
