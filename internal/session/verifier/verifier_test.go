package verifier

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iden3/go-iden3-crypto/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeroauth/internal/session/models"
	"zeroauth/pkg/platform/circuit"
)

// testdata holds a Groth16 key and a proof for the public input "1" that
// verifies under it, both in snarkjs JSON format.
var (
	//go:embed testdata/age_check_vKey.json
	testKeyJSON []byte
	//go:embed testdata/proof.json
	testProofJSON []byte
	//go:embed testdata/public.json
	testPublicJSON []byte
)

type fakeEngine struct {
	valid bool
	err   error
	delay time.Duration
	panic bool
	calls atomic.Int32
}

func (f *fakeEngine) Verify(*VerificationKey, *models.ProofPayload) (bool, error) {
	f.calls.Add(1)
	if f.panic {
		panic("pairing blew up")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.valid, f.err
}

func writeKeys(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AgeKeyFile), testKeyJSON, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, StudentKeyFile), testKeyJSON, 0o600))
	return dir
}

func validProof() *models.ProofPayload {
	var proof models.ProofPayload
	if err := json.Unmarshal(testProofJSON, &proof); err != nil {
		panic(err)
	}
	if err := json.Unmarshal(testPublicJSON, &proof.PublicSignals); err != nil {
		panic(err)
	}
	return &proof
}

// mutateKey rewrites one field of the fixture key.
func mutateKey(t *testing.T, mutate func(map[string]any)) []byte {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal(testKeyJSON, &raw))
	mutate(raw)
	out, err := json.Marshal(raw)
	require.NoError(t, err)
	return out
}

func TestVerifier_Verdicts(t *testing.T) {
	keys := NewKeyRegistry(writeKeys(t))

	t.Run("valid proof", func(t *testing.T) {
		v := New(keys, &fakeEngine{valid: true})
		ok, err := v.Verify(context.Background(), validProof(), models.CredentialTypeAge)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("clean rejection is false without error", func(t *testing.T) {
		v := New(keys, &fakeEngine{valid: false})
		ok, err := v.Verify(context.Background(), validProof(), models.CredentialTypeStudent)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("engine error is an engine fault", func(t *testing.T) {
		v := New(keys, &fakeEngine{err: errors.New("pairing failed")})
		ok, err := v.Verify(context.Background(), validProof(), models.CredentialTypeAge)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrEngine)
	})

	t.Run("engine panic is contained", func(t *testing.T) {
		v := New(keys, &fakeEngine{panic: true})
		ok, err := v.Verify(context.Background(), validProof(), models.CredentialTypeAge)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrEngine)
	})
}

func TestVerifier_TimeoutFailsClosed(t *testing.T) {
	v := New(NewKeyRegistry(writeKeys(t)), &fakeEngine{valid: true, delay: 200 * time.Millisecond},
		WithTimeout(10*time.Millisecond))

	start := time.Now()
	ok, err := v.Verify(context.Background(), validProof(), models.CredentialTypeAge)

	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrEngine)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "caller is released at the deadline")
}

func TestVerifier_MalformedProofSkipsEngine(t *testing.T) {
	engine := &fakeEngine{valid: true}
	v := New(NewKeyRegistry(writeKeys(t)), engine)

	proof := validProof()
	proof.PiB = [][]string{{"1"}}
	ok, err := v.Verify(context.Background(), proof, models.CredentialTypeAge)

	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformedProof)
	assert.Zero(t, engine.calls.Load())
}

func TestVerifier_MissingKey(t *testing.T) {
	engine := &fakeEngine{valid: true}
	v := New(NewKeyRegistry(t.TempDir()), engine)

	ok, err := v.Verify(context.Background(), validProof(), models.CredentialTypeAge)

	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrKeyUnavailable)
	assert.ErrorIs(t, err, ErrEngine)
	assert.Zero(t, engine.calls.Load())
}

func TestVerifier_CircuitOpensOnRepeatedFaults(t *testing.T) {
	engine := &fakeEngine{err: errors.New("engine down")}
	breaker := circuit.New("proof_engine", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	v := New(NewKeyRegistry(writeKeys(t)), engine, WithBreaker(breaker))

	for range 2 {
		_, err := v.Verify(context.Background(), validProof(), models.CredentialTypeAge)
		require.ErrorIs(t, err, ErrEngine)
	}
	require.Equal(t, circuit.StateOpen, breaker.State())

	_, err := v.Verify(context.Background(), validProof(), models.CredentialTypeAge)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), engine.calls.Load(), "open circuit short-circuits the engine")
}

func TestVerifier_MalformedProofDoesNotTripCircuit(t *testing.T) {
	breaker := circuit.New("proof_engine", circuit.WithFailureThreshold(1))
	v := New(NewKeyRegistry(writeKeys(t)), &fakeEngine{valid: true}, WithBreaker(breaker))

	proof := validProof()
	proof.Protocol = "plonk"
	_, err := v.Verify(context.Background(), proof, models.CredentialTypeAge)

	require.ErrorIs(t, err, ErrMalformedProof)
	assert.Equal(t, circuit.StateClosed, breaker.State())
}

func TestCheckShape(t *testing.T) {
	key, err := parseVerificationKey(testKeyJSON)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*models.ProofPayload)
	}{
		{"pi_a length", func(p *models.ProofPayload) { p.PiA = p.PiA[:2] }},
		{"pi_c length", func(p *models.ProofPayload) { p.PiC = append(p.PiC, "1") }},
		{"pi_b rows", func(p *models.ProofPayload) { p.PiB = p.PiB[:2] }},
		{"pi_b columns", func(p *models.ProofPayload) { p.PiB[1] = []string{"1", "2", "3"} }},
		{"protocol", func(p *models.ProofPayload) { p.Protocol = "plonk" }},
		{"curve", func(p *models.ProofPayload) { p.Curve = "bls12381" }},
		{"non-decimal element", func(p *models.ProofPayload) { p.PiA[0] = "0xdead" }},
		{"negative element", func(p *models.ProofPayload) { p.PiC[0] = "-1" }},
		{"pi_a off curve", func(p *models.ProofPayload) { p.PiA[1] = "3" }},
		{"pi_b off twist", func(p *models.ProofPayload) { p.PiB[0][0] = "5" }},
		{"coordinate above field", func(p *models.ProofPayload) { p.PiC[0] = constants.Q.String() + constants.Q.String() }},
		{"public signal count", func(p *models.ProofPayload) { p.PublicSignals = []string{"1", "2"} }},
		{"public signal outside field", func(p *models.ProofPayload) { p.PublicSignals = []string{constants.Q.String()} }},
		{"non-decimal public signal", func(p *models.ProofPayload) { p.PublicSignals = []string{"one"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProof()
			tt.mutate(p)
			assert.ErrorIs(t, CheckShape(key, p), ErrMalformedProof)
		})
	}

	assert.NoError(t, CheckShape(key, validProof()))
	assert.ErrorIs(t, CheckShape(key, nil), ErrMalformedProof)
}

func TestKeyRegistry(t *testing.T) {
	t.Run("loads and caches", func(t *testing.T) {
		dir := writeKeys(t)
		r := NewKeyRegistry(dir)

		vk, err := r.Key(models.CredentialTypeAge)
		require.NoError(t, err)
		assert.Equal(t, 1, vk.NPublic)
		assert.NotEmpty(t, vk.Raw)

		require.NoError(t, os.Remove(filepath.Join(dir, AgeKeyFile)))
		cached, err := r.Key(models.CredentialTypeAge)
		require.NoError(t, err)
		assert.Same(t, vk, cached)
	})

	t.Run("every supported credential type has a key file", func(t *testing.T) {
		for _, ct := range models.SupportedCredentialTypes {
			assert.Contains(t, DefaultKeyFiles, ct)
		}
		assert.Len(t, DefaultKeyFiles, len(models.SupportedCredentialTypes))
	})

	t.Run("unknown credential type", func(t *testing.T) {
		r := NewKeyRegistry(writeKeys(t))
		_, err := r.Key("Driver License")
		assert.ErrorIs(t, err, ErrKeyUnavailable)
	})

	t.Run("malformed key file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, AgeKeyFile), []byte(`{"protocol":"groth16","curve":"bn128","nPublic":2,"IC":[]}`), 0o600))
		r := NewKeyRegistry(dir)
		_, err := r.Key(models.CredentialTypeAge)
		assert.ErrorIs(t, err, ErrKeyUnavailable)
	})

	t.Run("key with missing or off-curve points", func(t *testing.T) {
		cases := map[string]func(map[string]any){
			"no vk_beta_2":     func(k map[string]any) { delete(k, "vk_beta_2") },
			"no vk_gamma_2":    func(k map[string]any) { delete(k, "vk_gamma_2") },
			"no vk_delta_2":    func(k map[string]any) { delete(k, "vk_delta_2") },
			"alpha off curve":  func(k map[string]any) { k["vk_alpha_1"] = []string{"5", "7", "1"} },
			"delta off twist":  func(k map[string]any) { k["vk_delta_2"] = [][]string{{"5", "7"}, {"11", "13"}, {"1", "0"}} },
			"IC point garbage": func(k map[string]any) { k["IC"] = [][]string{{"x", "y", "1"}, {"1", "2", "1"}} },
		}
		for name, mutate := range cases {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, AgeKeyFile), mutateKey(t, mutate), 0o600))
			_, err := NewKeyRegistry(dir).Key(models.CredentialTypeAge)
			assert.ErrorIs(t, err, ErrKeyUnavailable, name)
		}
	})

	t.Run("failed load is retried", func(t *testing.T) {
		dir := t.TempDir()
		r := NewKeyRegistry(dir)
		_, err := r.Key(models.CredentialTypeStudent)
		require.Error(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, StudentKeyFile), testKeyJSON, 0o600))
		_, err = r.Key(models.CredentialTypeStudent)
		assert.NoError(t, err)
	})

	t.Run("preload reports missing keys", func(t *testing.T) {
		assert.Error(t, NewKeyRegistry(t.TempDir()).Preload())
		assert.NoError(t, NewKeyRegistry(writeKeys(t)).Preload())
	})
}

func TestGroth16Engine(t *testing.T) {
	key, err := parseVerificationKey(testKeyJSON)
	require.NoError(t, err)
	engine := NewGroth16Engine()

	t.Run("valid proof verifies", func(t *testing.T) {
		ok, err := engine.Verify(key, validProof())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("tampered public signal is a clean rejection", func(t *testing.T) {
		proof := validProof()
		proof.PublicSignals = []string{"0"}
		ok, err := engine.Verify(key, proof)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("swapped proof points are a clean rejection", func(t *testing.T) {
		proof := validProof()
		proof.PiA, proof.PiC = proof.PiC, proof.PiA
		ok, err := engine.Verify(key, proof)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed key is an engine fault", func(t *testing.T) {
		broken := *key
		broken.Beta = nil
		ok, err := engine.Verify(&broken, validProof())
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrKeyUnavailable)
		assert.ErrorIs(t, err, ErrEngine)
	})
}

func TestVerifier_Groth16EndToEnd(t *testing.T) {
	t.Run("fixture proof is accepted", func(t *testing.T) {
		v := New(NewKeyRegistry(writeKeys(t)), NewGroth16Engine())
		ok, err := v.Verify(context.Background(), validProof(), models.CredentialTypeAge)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("key without beta gamma delta fails closed as engine fault", func(t *testing.T) {
		dir := t.TempDir()
		partial := mutateKey(t, func(k map[string]any) {
			delete(k, "vk_beta_2")
			delete(k, "vk_gamma_2")
			delete(k, "vk_delta_2")
		})
		require.NoError(t, os.WriteFile(filepath.Join(dir, AgeKeyFile), partial, 0o600))
		breaker := circuit.New("proof_engine", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
		v := New(NewKeyRegistry(dir), NewGroth16Engine(), WithBreaker(breaker))

		ok, err := v.Verify(context.Background(), validProof(), models.CredentialTypeAge)

		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrKeyUnavailable)
		assert.ErrorIs(t, err, ErrEngine)
		assert.Equal(t, circuit.StateOpen, breaker.State())
	})
}
