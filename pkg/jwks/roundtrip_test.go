package jwks_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreiam/rbac-authzd/pkg/jwks"
	"github.com/coreiam/rbac-authzd/pkg/jwtsign"
	"github.com/coreiam/rbac-authzd/pkg/keys"
)

// roundTripKMS backs both the Signer and the Publisher with the same ECDSA
// key pair, so a token signed via one path can be verified against the JWK
// published via the other (spec property P6).
type roundTripKMS struct {
	priv *ecdsa.PrivateKey
}

func (k *roundTripKMS) Sign(_ context.Context, in *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	r, s, err := ecdsa.Sign(rand.Reader, k.priv, in.Message)
	if err != nil {
		return nil, err
	}
	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func (k *roundTripKMS) GetPublicKey(_ context.Context, _ *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	der, err := x509.MarshalPKIXPublicKey(&k.priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

// TestRoundTrip_TokenVerifiesAgainstPublishedJWK is property P6: a token
// issued under a region's key verifies against the JWK with the matching kid
// in the JWKS document.
func TestRoundTrip_TokenVerifiesAgainstPublishedJWK(t *testing.T) {
	t.Parallel()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	registry, err := keys.NewRegistry(keys.Config{
		DefaultKey:   keys.KeyRef("arn:aws:kms:us-east-1:111122223333:key/default"),
		RegionalKeys: []keys.KeyRef{keys.KeyRef("arn:aws:kms:us-west-2:111122223333:key/west")},
	})
	require.NoError(t, err)

	client := &roundTripKMS{priv: priv}

	signer := jwtsign.New(client, registry, "https://authz.example.com")
	token, err := signer.Sign(context.Background(), jwtsign.Request{
		PrincipalID:  "arn:aws:iam::1:user/alice",
		ResourceName: "api://x",
		Scopes:       []string{"rbac"},
		Roles:        []string{"rbac.read"},
		Region:       "us-west-2",
		Lifetime:     5 * time.Minute,
	})
	require.NoError(t, err)

	publisher, err := jwks.New(context.Background(), client, registry)
	require.NoError(t, err)

	doc, err := publisher.JWKS()
	require.NoError(t, err)
	set, err := jwk.Parse(doc)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	var header struct {
		Kid string `json:"kid"`
	}
	require.NoError(t, json.Unmarshal(headerJSON, &header))
	assert.Equal(t, "key/west", header.Kid)

	key, found := set.LookupKeyID(header.Kid)
	require.True(t, found, "JWKS must contain the kid from the token header")

	var pub ecdsa.PublicKey
	require.NoError(t, jwk.Export(key, &pub))

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	require.Len(t, sig, 64)

	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	assert.True(t, ecdsa.Verify(&pub, digest[:], r, s))
}
