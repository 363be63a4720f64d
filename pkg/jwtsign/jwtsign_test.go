package jwtsign_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/jwtsign"
	"github.com/coreiam/rbac-authzd/pkg/keys"
)

type fakeKMS struct {
	priv    *ecdsa.PrivateKey
	signErr error
}

func (f *fakeKMS) Sign(_ context.Context, in *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	r, s, err := ecdsa.Sign(rand.Reader, f.priv, in.Message)
	if err != nil {
		return nil, err
	}
	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func testRegistry(t *testing.T) *keys.Registry {
	t.Helper()
	r, err := keys.NewRegistry(keys.Config{
		DefaultKey: keys.KeyRef("arn:aws:kms:us-east-1:111122223333:key/default"),
	})
	require.NoError(t, err)
	return r
}

func TestSign_ProducesWellFormedCompactJWT(t *testing.T) {
	t.Parallel()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	signer := jwtsign.New(&fakeKMS{priv: priv}, testRegistry(t), "https://authz.example.com")

	token, err := signer.Sign(context.Background(), jwtsign.Request{
		PrincipalID:  "arn:aws:iam::1:user/alice",
		ResourceName: "api://x",
		Scopes:       []string{"rbac"},
		Roles:        []string{"rbac.read"},
		Region:       "us-east-1",
		Lifetime:     5 * time.Minute,
	})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	var header map[string]any
	require.NoError(t, json.Unmarshal(headerJSON, &header))
	assert.Equal(t, "ES256", header["alg"])
	assert.Equal(t, "key/default", header["kid"])

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(payloadJSON, &payload))
	assert.Equal(t, "arn:aws:iam::1:user/alice", payload["sub"])
	assert.Equal(t, "api://x", payload["aud"])
	assert.Equal(t, "rbac", payload["scope"])
	assert.NotEmpty(t, payload["jti"])

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	signingInput := parts[0] + "." + parts[1]
	digest := sha256.Sum256([]byte(signingInput))
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	assert.True(t, ecdsa.Verify(&priv.PublicKey, digest[:], r, s))
}

func TestSign_NotFoundKeyIsSigningForbidden(t *testing.T) {
	t.Parallel()

	signer := jwtsign.New(&fakeKMS{signErr: &types.NotFoundException{Message: strPtr("no such key")}}, testRegistry(t), "issuer")

	_, err := signer.Sign(context.Background(), jwtsign.Request{ResourceName: "api://x", Region: "us-east-1", Lifetime: time.Minute})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrSigningForbidden))
}

func TestSign_OtherFailureIsSigningUnavailable(t *testing.T) {
	t.Parallel()

	signer := jwtsign.New(&fakeKMS{signErr: errors.New("timeout")}, testRegistry(t), "issuer")

	_, err := signer.Sign(context.Background(), jwtsign.Request{ResourceName: "api://x", Region: "us-east-1", Lifetime: time.Minute})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrSigningUnavailable))
}

func strPtr(s string) *string { return &s }
