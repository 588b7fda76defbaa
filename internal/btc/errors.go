package btc

import "errors"

// errDecode is wrapped into every malformed wire-data error this package
// returns, so callers can classify them with errors.Is regardless of the
// specific parse failure.
var errDecode = errors.New("malformed bitcoin wire data")
