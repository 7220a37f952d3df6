package models

import (
	"fmt"
	"strings"

	dErrors "zeroauth/pkg/domain-errors"
	"zeroauth/pkg/validation"
)

// CreateSessionRequest is the body of POST /api/v1/sessions.
// RequiredClaims must be present but may be empty.
type CreateSessionRequest struct {
	VerifierName   string   `json:"verifier_name" validate:"required,notblank,max=200"`
	RequiredClaims []string `json:"required_claims" validate:"required,max=32,dive,notblank,max=128"`
	CredentialType string   `json:"credential_type"`
}

// Normalize trims input and applies the default credential type.
func (r *CreateSessionRequest) Normalize() {
	if r == nil {
		return
	}
	r.VerifierName = strings.TrimSpace(r.VerifierName)
	r.CredentialType = strings.TrimSpace(r.CredentialType)
	for i, claim := range r.RequiredClaims {
		r.RequiredClaims[i] = strings.TrimSpace(claim)
	}
	if r.CredentialType == "" {
		r.CredentialType = DefaultCredentialType.String()
	}
}

func (r *CreateSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	if !CredentialType(r.CredentialType).IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("unsupported credential_type %q", r.CredentialType))
	}
	return nil
}

// SubmitProofRequest is the body of POST /api/v1/sessions/{id}/proof.
type SubmitProofRequest struct {
	ProofPayload
}

func (r *SubmitProofRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return r.ProofPayload.Validate()
}

// Validate checks that every proof field is present. Curve membership and
// field ranges are the verifier's concern.
func (p *ProofPayload) Validate() error {
	if p == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "proof is required")
	}
	return validation.Validate(p)
}
