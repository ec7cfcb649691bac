package x402

// Protocol versions understood by this SDK.
const (
	// ProtocolVersionV1 is the legacy wire format: scheme/network at the top
	// level of the payload, maxAmountRequired in requirements, X-PAYMENT header.
	ProtocolVersionV1 = 1

	// ProtocolVersion is the current wire format: requirements echoed back in
	// the payload's accepted field, amount in requirements, PAYMENT-SIGNATURE
	// header.
	ProtocolVersion = 2
)
