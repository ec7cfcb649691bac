// Package svm provides SVM (Solana Virtual Machine) blockchain support for
// the x402 payment protocol. The exact scheme carries a base64-encoded,
// partially signed transaction whose final instruction is an SPL Token
// TransferChecked; the facilitator co-signs as fee payer and submits it.
package svm

import "time"

// SchemeExact is the exact payment scheme identifier
const SchemeExact = "exact"

// CAIP-2 network identifiers (V2)
const (
	SolanaMainnetCAIP2 = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	SolanaDevnetCAIP2  = "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
	SolanaTestnetCAIP2 = "solana:4uhcVJyU9pJkvQyS88uRDiswHXSCkY3z"
)

// Legacy network names (V1)
const (
	SolanaMainnetV1 = "solana"
	SolanaDevnetV1  = "solana-devnet"
	SolanaTestnetV1 = "solana-testnet"
)

// USDC mint addresses
const (
	USDCMainnetAddress = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDCDevnetAddress  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

// Well-known program addresses used during transaction inspection
const (
	// MemoProgramAddress is the SPL Memo program, allowed as an optional
	// instruction in payment transactions.
	MemoProgramAddress = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

	// LighthouseProgramAddress is the Lighthouse assertion program, allowed
	// as an optional instruction in payment transactions.
	LighthouseProgramAddress = "L2TExMFKdjpN9kozasaurPirfHy9P8sbXoAN1qA3S95"

	// SwigProgramAddress is the Swig smart wallet program.
	SwigProgramAddress = "swigypWHEksbC64pWKwah1WTeh9JXwx8H1rJHLdbQMB"

	// Secp256r1PrecompileAddress is the secp256r1 signature verification
	// precompile used by passkey-backed Swig wallets.
	Secp256r1PrecompileAddress = "Secp256r1SigVerify1111111111111111111111111"
)

// SwigSignV2Discriminator is the U16 LE discriminator of the Swig signV2
// instruction.
const SwigSignV2Discriminator uint16 = 11

// Compute budget program instruction discriminators
const (
	ComputeUnitLimitDiscriminator = 2
	ComputeUnitPriceDiscriminator = 3
)

// TransferCheckedDiscriminator is the SPL Token instruction discriminator for
// TransferChecked.
const TransferCheckedDiscriminator = 12

// DefaultComputeUnitPrice is the priority fee in micro-lamports attached to
// client-built payment transactions.
const DefaultComputeUnitPrice uint64 = 1000

// DefaultComputeUnitLimit covers compute limit + compute price +
// TransferChecked.
const DefaultComputeUnitLimit uint32 = 6500

// MaxComputeUnitLimit is the largest compute unit limit a payment transaction
// may request. Payments are simple transfers; anything bigger is suspicious.
const MaxComputeUnitLimit uint32 = 400_000

// Instruction count bounds for payment transactions: 2 compute budget
// instructions + TransferChecked, plus up to 3 optional Lighthouse/Memo
// instructions.
const (
	MinTransactionInstructions = 3
	MaxTransactionInstructions = 6
)

// Transaction confirmation parameters
const (
	MaxConfirmAttempts = 30
	ConfirmRetryDelay  = time.Second
)
