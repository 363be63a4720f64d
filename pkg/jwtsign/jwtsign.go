// Package jwtsign implements the KMS-backed JWT signing pipeline (spec
// §4.6): it builds the header/payload, hashes the signing input, and asks a
// remote key-management service to sign the hash so that private key
// material never leaves the HSM.
package jwtsign

import (
	"context"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/keys"
)

// signatureComponentSize is the fixed byte width of each of R and S in the
// JWS ES256 signature encoding (spec §4.6 step 5): 256-bit curve order,
// big-endian, zero-padded.
const signatureComponentSize = 32

// KMSClient is the subset of *kms.Client this signer needs.
type KMSClient interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// Signer is the JWT Signer (spec §4.6).
type Signer struct {
	client   KMSClient
	registry *keys.Registry
	issuer   string
}

// New builds a Signer over client, selecting keys from registry and
// stamping the "iss" claim with issuer.
func New(client KMSClient, registry *keys.Registry, issuer string) *Signer {
	return &Signer{client: client, registry: registry, issuer: issuer}
}

// Request carries everything needed to mint one token.
type Request struct {
	PrincipalID  string
	ResourceName string
	Scopes       []string
	Roles        []string
	Region       string
	Lifetime     time.Duration
}

// now is overridable in tests; production always uses time.Now.
var now = time.Now

// Sign builds and signs a compact JWT for req, following spec §4.6 steps
// 1-6 exactly.
func (s *Signer) Sign(ctx context.Context, req Request) (string, error) {
	keyRef := s.registry.PickSigningKey(req.Region)
	kid, err := s.registry.KidFor(keyRef)
	if err != nil {
		return "", apierrors.NewInternal(fmt.Errorf("resolve kid: %w", err))
	}

	header := map[string]any{
		"alg": "ES256",
		"typ": "JWT",
		"kid": kid,
	}

	issuedAt := now().UTC()
	payload := map[string]any{
		"iss":   s.issuer,
		"sub":   req.PrincipalID,
		"aud":   req.ResourceName,
		"scope": joinScopes(req.Scopes),
		"roles": req.Roles,
		"iat":   issuedAt.Unix(),
		"exp":   issuedAt.Add(req.Lifetime).Unix(),
		"jti":   uuid.NewString(),
	}

	headerB64, err := encodeSegment(header)
	if err != nil {
		return "", apierrors.NewInternal(fmt.Errorf("encode header: %w", err))
	}
	payloadB64, err := encodeSegment(payload)
	if err != nil {
		return "", apierrors.NewInternal(fmt.Errorf("encode payload: %w", err))
	}

	signingInput := headerB64 + "." + payloadB64
	digest := sha256.Sum256([]byte(signingInput))

	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            stringPtr(string(keyRef)),
		Message:          digest[:],
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return "", translateKMSError(err)
	}

	jwsSig, err := derToJWS(out.Signature)
	if err != nil {
		return "", apierrors.NewInternal(fmt.Errorf("convert signature: %w", err))
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(jwsSig), nil
}

func joinScopes(scopes []string) string {
	s := ""
	for i, sc := range scopes {
		if i > 0 {
			s += " "
		}
		s += sc
	}
	return s
}

func encodeSegment(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func stringPtr(s string) *string { return &s }

// derSignature mirrors the ASN.1 SEQUENCE{INTEGER r, INTEGER s} that KMS
// returns for ECDSA signatures.
type derSignature struct {
	R, S *big.Int
}

// derToJWS converts a DER-encoded ECDSA signature to the JWS fixed-length
// R||S form required for ES256 (spec §4.6 step 5).
func derToJWS(der []byte) ([]byte, error) {
	var sig derSignature
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("parse DER signature: %w", err)
	}

	out := make([]byte, 2*signatureComponentSize)
	sig.R.FillBytes(out[:signatureComponentSize])
	sig.S.FillBytes(out[signatureComponentSize:])
	return out, nil
}

// translateKMSError maps KMS failure modes to SigningUnavailable (transient,
// retriable) or SigningForbidden (fatal, opaque -- spec §4.6, §7).
func translateKMSError(err error) error {
	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return apierrors.ErrSigningForbidden
	}

	var disabled *types.DisabledException
	if errors.As(err, &disabled) {
		return apierrors.ErrSigningForbidden
	}

	var invalidState *types.KMSInvalidStateException
	if errors.As(err, &invalidState) {
		return apierrors.ErrSigningForbidden
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDeniedException" {
		return apierrors.ErrSigningForbidden
	}

	return apierrors.ErrSigningUnavailable
}
