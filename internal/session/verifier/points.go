package verifier

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/constants"
	"github.com/iden3/go-rapidsnark/verifier/bn256"
)

const coordinateBytes = 32

var errPointEncoding = errors.New("point encoding")

// decodeCoordinate reads one decimal base-field coordinate as a padded
// big-endian word. "1" reads as zero, matching the engine's decoding of the
// projective snarkjs encoding of the point at infinity.
func decodeCoordinate(s string) ([]byte, error) {
	if s == "1" {
		s = "0"
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("coordinate %q is not a decimal field element: %w", s, errPointEncoding)
	}
	if n.BitLen() > coordinateBytes*8 {
		return nil, fmt.Errorf("coordinate %q exceeds the field: %w", s, errPointEncoding)
	}
	return n.FillBytes(make([]byte, coordinateBytes)), nil
}

// decodeG1 parses a snarkjs [x, y, z] point and checks it lies on the curve.
func decodeG1(coords []string) (*bn256.G1, error) {
	if len(coords) != 3 {
		return nil, fmt.Errorf("G1 point needs 3 coordinates, got %d: %w", len(coords), errPointEncoding)
	}
	buf := make([]byte, 0, 2*coordinateBytes)
	for _, c := range coords[:2] {
		b, err := decodeCoordinate(c)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	p := new(bn256.G1)
	if _, err := p.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("G1 point: %w: %w", err, errPointEncoding)
	}
	return p, nil
}

// decodeG2 parses a snarkjs [[x0, x1], [y0, y1], [z0, z1]] point and checks it
// lies on the twist. The engine expects each Fp2 element imaginary part first.
func decodeG2(coords [][]string) (*bn256.G2, error) {
	if len(coords) != 3 {
		return nil, fmt.Errorf("G2 point needs 3 rows, got %d: %w", len(coords), errPointEncoding)
	}
	buf := make([]byte, 0, 4*coordinateBytes)
	for _, row := range coords[:2] {
		if len(row) != 2 {
			return nil, fmt.Errorf("G2 rows need 2 elements, got %d: %w", len(row), errPointEncoding)
		}
		for _, c := range []string{row[1], row[0]} {
			b, err := decodeCoordinate(c)
			if err != nil {
				return nil, err
			}
			buf = append(buf, b...)
		}
	}
	p := new(bn256.G2)
	if _, err := p.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("G2 point: %w: %w", err, errPointEncoding)
	}
	return p, nil
}

// checkScalar reports whether s is a decimal element of the BN254 scalar field.
func checkScalar(s string) bool {
	n, ok := new(big.Int).SetString(s, 10)
	return ok && n.Sign() >= 0 && n.Cmp(constants.Q) < 0
}
