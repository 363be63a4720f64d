// Package jwks implements the JWKS Publisher (spec §4.7): it fetches public
// key material for every registered signing key once at process start,
// caches it for the process lifetime, and serves it as a JSON Web Key Set
// plus a static OpenID discovery document.
package jwks

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/keys"
)

// KMSClient is the subset of *kms.Client this publisher needs.
type KMSClient interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// Publisher holds the process-lifetime cache of public signing keys,
// converted to JWK form. Keys in this registry do not rotate online, so the
// cache is built once at construction and never invalidated (spec §4.7, §5).
type Publisher struct {
	set jwk.Set
}

// New fetches and caches the public key material for every key in
// registry.AllKeys(), converting each ECDSA-P256 key to the JWK form
// {kty: "EC", crv: "P-256", x, y, kid, alg: "ES256", use: "sig"}.
func New(ctx context.Context, client KMSClient, registry *keys.Registry) (*Publisher, error) {
	set := jwk.NewSet()

	for _, keyRef := range registry.AllKeys() {
		kid, err := registry.KidFor(keyRef)
		if err != nil {
			return nil, apierrors.NewInternal(fmt.Errorf("resolve kid for %s: %w", keyRef, err))
		}

		out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: stringPtr(string(keyRef))})
		if err != nil {
			return nil, translateKMSError(err)
		}

		pub, err := x509.ParsePKIXPublicKey(out.PublicKey)
		if err != nil {
			return nil, apierrors.NewInternal(fmt.Errorf("parse public key for %s: %w", keyRef, err))
		}
		ecdsaPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return nil, apierrors.NewInternal(fmt.Errorf("key %s is not ECDSA", keyRef))
		}

		key, err := jwk.Import(ecdsaPub)
		if err != nil {
			return nil, apierrors.NewInternal(fmt.Errorf("import jwk for %s: %w", keyRef, err))
		}
		if err := key.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, apierrors.NewInternal(err)
		}
		if err := key.Set(jwk.AlgorithmKey, "ES256"); err != nil {
			return nil, apierrors.NewInternal(err)
		}
		if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
			return nil, apierrors.NewInternal(err)
		}

		if err := set.AddKey(key); err != nil {
			return nil, apierrors.NewInternal(fmt.Errorf("add jwk for %s: %w", keyRef, err))
		}
	}

	return &Publisher{set: set}, nil
}

// JWKS marshals the cached key set as {"keys": [...]}.
func (p *Publisher) JWKS() ([]byte, error) {
	b, err := json.Marshal(p.set)
	if err != nil {
		return nil, apierrors.NewInternal(fmt.Errorf("marshal jwks: %w", err))
	}
	return b, nil
}

// DiscoveryDocument is the static OpenID configuration composed from issuer
// configuration and the JWKS URI (spec §4.7).
type DiscoveryDocument struct {
	Issuer                string   `json:"issuer"`
	JWKSURI               string   `json:"jwks_uri"`
	TokenEndpoint         string   `json:"token_endpoint"`
	ResponseTypesSupp     []string `json:"response_types_supported"`
	GrantTypesSupported   []string `json:"grant_types_supported"`
	IDTokenSigningAlgs    []string `json:"id_token_signing_alg_values_supported"`
	SubjectTypesSupported []string `json:"subject_types_supported"`
}

// NewDiscoveryDocument builds the static discovery document. Only
// client_credentials is supported (spec §1 Non-goals exclude authorization
// code and implicit flows).
func NewDiscoveryDocument(issuer, jwksURI, tokenEndpoint string) DiscoveryDocument {
	return DiscoveryDocument{
		Issuer:                issuer,
		JWKSURI:               jwksURI,
		TokenEndpoint:         tokenEndpoint,
		ResponseTypesSupp:     []string{"token"},
		GrantTypesSupported:   []string{"client_credentials"},
		IDTokenSigningAlgs:    []string{"ES256"},
		SubjectTypesSupported: []string{"public"},
	}
}

func stringPtr(s string) *string { return &s }

func translateKMSError(err error) error {
	var notFound *types.NotFoundException
	var disabled *types.DisabledException
	var invalidState *types.KMSInvalidStateException

	if errors.As(err, &notFound) || errors.As(err, &disabled) || errors.As(err, &invalidState) {
		return apierrors.ErrSigningForbidden
	}
	return apierrors.ErrSigningUnavailable
}
