package verifier

import (
	"errors"
	"fmt"
)

// ErrEngine marks every failure of the verification machinery itself, as
// opposed to a clean "proof does not verify" verdict. Callers fail closed on it.
var ErrEngine = errors.New("verification engine error")

var (
	ErrTimeout        = fmt.Errorf("verification timed out: %w", ErrEngine)
	ErrMalformedProof = fmt.Errorf("malformed proof: %w", ErrEngine)
	ErrKeyUnavailable = fmt.Errorf("verification key unavailable: %w", ErrEngine)
	ErrCircuitOpen    = fmt.Errorf("verification engine circuit open: %w", ErrEngine)
)
