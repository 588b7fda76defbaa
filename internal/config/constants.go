package config

import "time"

// Logging
const (
	LogFilePattern = "btcanchoring-%s-%s.log"
	LogMaxAgeDays  = 14
)

// HTTP server
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 15 * time.Second
)

// Anchoring defaults. `anchorctl init` uses the same values as literal flag
// defaults rather than referring to these constants.
const (
	DefaultAnchoringInterval = 5000 // blocks
	DefaultTransactionFee    = 10   // satoshis per virtual byte
)

// Relay client
const (
	RelayRequestTimeout   = 15 * time.Second
	RelayMaxRetries       = 3
	RelayRetryBaseDelay   = 1 * time.Second
	RelayRequestsPerBlock = 4 // rate limit budget for Esplora-style relays
)

// Bitcoin transaction construction, mirrored from BIP-141 weight units. Used
// by the proposal builder to size the anchoring transaction fee without
// serializing a placeholder witness.
const (
	BTCTxOverheadWU       = 42
	BTCP2WSHInputNonWitWU = 164
	BTCPerSigWitnessWU    = 72 // DER signature + sighash-type byte, rounded up
	BTCRedeemScriptKeyWU  = 4  // marginal witness weight per committee key in the redeem script
	BTCOutputBaseWU       = 124
	BTCOpReturnOutputWU   = 212 // output carrying the fixed-width OP_RETURN payload
	OpReturnPayloadLen    = 42  // marker(1) + version(1) + height(8) + hash(32)
)

// Pagination for public HTTP endpoints.
const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 500
)
