// Package tokenendpoint orchestrates the OAuth 2.0 client-credentials token
// request at the contract level (spec §4, §6): caller-identity verification
// (external) -> RBAC principal-access lookup -> JWT issuance. It contains
// no HTTP handler code; route mapping, JSON binding, and problem-detail
// formatting are out of scope (spec §1).
package tokenendpoint

import (
	"context"
	"time"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/jwtsign"
	"github.com/coreiam/rbac-authzd/pkg/rbac"
)

// CallerIdentityVerifier authenticates a client-credentials request by
// verifying the signed GetCallerIdentity request carried as client_secret,
// returning the caller's AWS ARN as the principal identifier. SigV4
// verification itself is an external collaborator (spec §1).
type CallerIdentityVerifier interface {
	Verify(ctx context.Context, clientID, clientSecret string) (principalID string, err error)
}

// AccessReader is the subset of *rbac.Repository this service depends on.
type AccessReader interface {
	GetAccess(ctx context.Context, principalID, resourceName, scopeName string) (*rbac.Access, error)
}

// Signer is the subset of *jwtsign.Signer this service depends on.
type Signer interface {
	Sign(ctx context.Context, req jwtsign.Request) (string, error)
}

// Service wires the three collaborators together into one token-issuance
// operation (spec §2 "Control flow for a token request").
type Service struct {
	verifier     CallerIdentityVerifier
	access       AccessReader
	signer       Signer
	issuerRegion string
	lifetime     time.Duration
}

// New builds a Service. issuerRegion selects the signing key region (spec
// §4.6 step 1); lifetime is the token's validity window.
func New(verifier CallerIdentityVerifier, access AccessReader, signer Signer, issuerRegion string, lifetime time.Duration) *Service {
	return &Service{verifier: verifier, access: access, signer: signer, issuerRegion: issuerRegion, lifetime: lifetime}
}

// Request is the orchestration-level view of a POST /token body (spec §6);
// HTTP form decoding into this struct is an external concern.
type Request struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Scope        string
	Resource     string
}

// Response is the orchestration-level view of a token response (spec §6).
type Response struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
}

const grantTypeClientCredentials = "client_credentials"

// IssueToken authenticates the caller, looks up its access on the requested
// resource, and signs a JWT carrying that access. Non-goals (spec §1):
// authorization-code and implicit flows are rejected at GrantType.
func (s *Service) IssueToken(ctx context.Context, req Request) (*Response, error) {
	if req.GrantType != grantTypeClientCredentials {
		return nil, apierrors.NewValidationFailed("grant_type", "only client_credentials is supported")
	}
	if req.Resource == "" {
		return nil, apierrors.NewValidationFailed("resource", "must not be empty")
	}

	principalID, err := s.verifier.Verify(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, apierrors.ErrUnauthorized
	}

	access, err := s.access.GetAccess(ctx, principalID, req.Resource, req.Scope)
	if err != nil {
		return nil, err
	}

	token, err := s.signer.Sign(ctx, jwtsign.Request{
		PrincipalID:  principalID,
		ResourceName: access.ResourceName,
		Scopes:       access.Scopes,
		Roles:        access.Roles,
		Region:       s.issuerRegion,
		Lifetime:     s.lifetime,
	})
	if err != nil {
		return nil, err
	}

	return &Response{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.lifetime.Seconds()),
	}, nil
}
