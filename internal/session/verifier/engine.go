package verifier

import (
	"fmt"

	"github.com/iden3/go-rapidsnark/types"
	rapidsnark "github.com/iden3/go-rapidsnark/verifier"

	"zeroauth/internal/session/models"
)

const (
	ProtocolGroth16 = "groth16"
	CurveBN128      = "bn128"
)

// Engine checks a proof against a verification key.
// A clean rejection is (false, nil); a non-nil error means the check itself failed.
type Engine interface {
	Verify(key *VerificationKey, proof *models.ProofPayload) (bool, error)
}

// Groth16Engine verifies snarkjs-format Groth16 proofs over BN254 with go-rapidsnark.
type Groth16Engine struct{}

func NewGroth16Engine() *Groth16Engine {
	return &Groth16Engine{}
}

// Verify checks the key and the proof encoding first so that malformed
// inputs surface as errors. What remains for the library to reject is a
// failed pairing check, which is a clean "does not verify".
func (Groth16Engine) Verify(key *VerificationKey, proof *models.ProofPayload) (bool, error) {
	if key == nil {
		return false, fmt.Errorf("no key: %w", ErrKeyUnavailable)
	}
	if err := key.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	if err := CheckShape(key, proof); err != nil {
		return false, err
	}
	zkp := types.ZKProof{
		Proof: &types.ProofData{
			A:        proof.PiA,
			B:        proof.PiB,
			C:        proof.PiC,
			Protocol: proof.Protocol,
		},
		PubSignals: proof.PublicSignals,
	}
	if err := rapidsnark.VerifyGroth16(zkp, key.Raw); err != nil {
		return false, nil //nolint:nilerr // pairing mismatch is a verdict, not a fault
	}
	return true, nil
}

// CheckShape validates the structure of a proof against the key it will be
// checked with: protocol, curve, that every point decodes onto the curve, the
// public input count and that each public input is a scalar field element.
func CheckShape(key *VerificationKey, proof *models.ProofPayload) error {
	if proof == nil {
		return fmt.Errorf("proof is required: %w", ErrMalformedProof)
	}
	if proof.Protocol != ProtocolGroth16 {
		return fmt.Errorf("unsupported protocol %q: %w", proof.Protocol, ErrMalformedProof)
	}
	if proof.Curve != CurveBN128 {
		return fmt.Errorf("unsupported curve %q: %w", proof.Curve, ErrMalformedProof)
	}
	if _, err := decodeG1(proof.PiA); err != nil {
		return fmt.Errorf("pi_a: %w: %w", err, ErrMalformedProof)
	}
	if _, err := decodeG2(proof.PiB); err != nil {
		return fmt.Errorf("pi_b: %w: %w", err, ErrMalformedProof)
	}
	if _, err := decodeG1(proof.PiC); err != nil {
		return fmt.Errorf("pi_c: %w: %w", err, ErrMalformedProof)
	}
	if key != nil && len(proof.PublicSignals) != key.NPublic {
		return fmt.Errorf("expected %d public signals, got %d: %w", key.NPublic, len(proof.PublicSignals), ErrMalformedProof)
	}
	for i, signal := range proof.PublicSignals {
		if !checkScalar(signal) {
			return fmt.Errorf("publicSignals[%d] is not a scalar field element: %w", i, ErrMalformedProof)
		}
	}
	return nil
}
