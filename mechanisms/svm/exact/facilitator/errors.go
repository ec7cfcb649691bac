package facilitator

// Facilitator error constants for the exact SVM scheme
const (
	ErrUnsupportedScheme              = "invalid_exact_solana_scheme"
	ErrNetworkMismatch                = "invalid_exact_solana_network_mismatch"
	ErrInvalidPayload                 = "invalid_exact_solana_payload"
	ErrFailedToDecodeTransaction      = "invalid_exact_solana_payload_transaction_decode"
	ErrTransactionInstructionsLength  = "invalid_exact_solana_payload_transaction_instructions_length"
	ErrTransactionInstructionsType    = "invalid_exact_solana_payload_transaction_instructions_type"
	ErrNoTransferInstruction          = "invalid_exact_solana_payload_no_transfer_instruction"
	ErrComputeUnitLimitTooHigh        = "invalid_exact_solana_payload_compute_unit_limit"
	ErrFeePayerMismatch               = "invalid_exact_solana_payload_fee_payer_mismatch"
	ErrMissingClientSignature         = "invalid_exact_solana_payload_missing_client_signature"
	ErrAssetMismatch                  = "invalid_exact_solana_payload_asset_mismatch"
	ErrRecipientMismatch              = "invalid_exact_solana_payload_recipient_mismatch"
	ErrInvalidTransferAmount          = "invalid_exact_solana_payload_transfer_amount"
	ErrInsufficientAmount             = "invalid_exact_solana_payload_insufficient_amount"
	ErrInvalidRequiredAmount          = "invalid_exact_solana_required_amount"
	ErrSimulationFailed               = "invalid_exact_solana_simulation_failed"
	ErrVerificationFailed             = "invalid_exact_solana_verification_failed"
	ErrFailedToSignTransaction        = "invalid_exact_solana_failed_to_sign_transaction"
	ErrFailedToSendTransaction        = "invalid_exact_solana_failed_to_send_transaction"
	ErrTransactionConfirmationFailed  = "invalid_exact_solana_transaction_confirmation_failed"
)
