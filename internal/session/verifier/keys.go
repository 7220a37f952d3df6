package verifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"zeroauth/internal/session/models"
)

// Verification key files, one per credential type.
const (
	AgeKeyFile     = "age_check_vKey.json"
	StudentKeyFile = "student_check_vKey.json"
)

// DefaultKeyFiles maps each supported credential type to its key file.
var DefaultKeyFiles = map[models.CredentialType]string{
	models.CredentialTypeAge:     AgeKeyFile,
	models.CredentialTypeStudent: StudentKeyFile,
}

// VerificationKey is a parsed snarkjs Groth16 verification key.
// Raw holds the original JSON handed to the proof engine.
type VerificationKey struct {
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve"`
	NPublic  int        `json:"nPublic"`
	Alpha    []string   `json:"vk_alpha_1"`
	Beta     [][]string `json:"vk_beta_2"`
	Gamma    [][]string `json:"vk_gamma_2"`
	Delta    [][]string `json:"vk_delta_2"`
	IC       [][]string `json:"IC"`
	Raw      []byte     `json:"-"`
}

func parseVerificationKey(data []byte) (*VerificationKey, error) {
	var vk VerificationKey
	if err := json.Unmarshal(data, &vk); err != nil {
		return nil, fmt.Errorf("parse verification key: %w", err)
	}
	if err := vk.Validate(); err != nil {
		return nil, err
	}
	vk.Raw = data
	return &vk, nil
}

// Validate checks the key header and that every point decodes onto the curve.
func (vk *VerificationKey) Validate() error {
	if vk.Protocol != ProtocolGroth16 {
		return fmt.Errorf("unsupported key protocol %q", vk.Protocol)
	}
	if vk.Curve != CurveBN128 {
		return fmt.Errorf("unsupported key curve %q", vk.Curve)
	}
	if vk.NPublic < 0 || len(vk.IC) != vk.NPublic+1 {
		return fmt.Errorf("verification key has %d IC points for %d public inputs", len(vk.IC), vk.NPublic)
	}
	if _, err := decodeG1(vk.Alpha); err != nil {
		return fmt.Errorf("vk_alpha_1: %w", err)
	}
	for name, point := range map[string][][]string{
		"vk_beta_2":  vk.Beta,
		"vk_gamma_2": vk.Gamma,
		"vk_delta_2": vk.Delta,
	} {
		if _, err := decodeG2(point); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for i, point := range vk.IC {
		if _, err := decodeG1(point); err != nil {
			return fmt.Errorf("IC[%d]: %w", i, err)
		}
	}
	return nil
}

// KeyRegistry loads verification keys from a directory on first use and
// caches them. Keys are immutable public parameters, so the cache is never
// invalidated; failed loads are not cached and are retried on the next call.
type KeyRegistry struct {
	dir   string
	files map[models.CredentialType]string

	mu    sync.RWMutex
	cache map[models.CredentialType]*VerificationKey
}

// NewKeyRegistry creates a registry reading the default key files from dir.
func NewKeyRegistry(dir string) *KeyRegistry {
	return NewKeyRegistryWithFiles(dir, DefaultKeyFiles)
}

// NewKeyRegistryWithFiles creates a registry with an explicit file mapping.
func NewKeyRegistryWithFiles(dir string, files map[models.CredentialType]string) *KeyRegistry {
	return &KeyRegistry{
		dir:   dir,
		files: files,
		cache: make(map[models.CredentialType]*VerificationKey),
	}
}

// Key returns the verification key for the credential type.
func (r *KeyRegistry) Key(credentialType models.CredentialType) (*VerificationKey, error) {
	r.mu.RLock()
	vk, ok := r.cache[credentialType]
	r.mu.RUnlock()
	if ok {
		return vk, nil
	}

	file, ok := r.files[credentialType]
	if !ok {
		return nil, fmt.Errorf("no verification key for credential type %q: %w", credentialType, ErrKeyUnavailable)
	}
	path := filepath.Join(r.dir, file)
	data, err := os.ReadFile(path) //nolint:gosec // path built from a fixed file table
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, err, ErrKeyUnavailable)
	}
	vk, err = parseVerificationKey(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, err, ErrKeyUnavailable)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[credentialType]; ok {
		return cached, nil
	}
	r.cache[credentialType] = vk
	return vk, nil
}

// Preload loads every configured key, reporting the first failure.
// Used at startup so a missing key is visible before the first proof arrives.
func (r *KeyRegistry) Preload() error {
	for ct := range r.files {
		if _, err := r.Key(ct); err != nil {
			return err
		}
	}
	return nil
}
