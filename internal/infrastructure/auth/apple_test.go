package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsSum/internal/config"
	"NewsSum/internal/domain"
	"NewsSum/internal/logging"
)

const testBundleID = "com.example.newssum"

type fakeApple struct {
	t          *testing.T
	server     *httptest.Server
	clientKey  *ecdsa.PublicKey
	keysHits   atomic.Int32
	keysStatus int

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	idToken string
}

func newFakeApple(t *testing.T, clientKey *ecdsa.PublicKey) *fakeApple {
	f := &fakeApple{t: t, clientKey: clientKey, keys: map[string]*rsa.PublicKey{}, keysStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", f.token)
	mux.HandleFunc("/auth/keys", f.jwks)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeApple) token(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())

	secret := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(r.PostForm.Get("client_secret"), secret, func(tok *jwt.Token) (any, error) {
		assert.Equal(f.t, "KEY123", tok.Header["kid"])
		return f.clientKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	if err != nil || secret.Issuer != "TEAM123" || secret.Subject != testBundleID || r.PostForm.Get("client_id") != testBundleID {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("code") != "good-code" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	f.mu.Lock()
	idToken := f.idToken
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "apple-access",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     idToken,
	})
}

func (f *fakeApple) jwks(w http.ResponseWriter, _ *http.Request) {
	f.keysHits.Add(1)
	if f.keysStatus != http.StatusOK {
		w.WriteHeader(f.keysStatus)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	set := map[string][]map[string]string{"keys": {}}
	for kid, key := range f.keys {
		set["keys"] = append(set["keys"], map[string]string{
			"kty": "RSA",
			"kid": kid,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

func (f *fakeApple) publish(kid string, key *rsa.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[kid] = key
}

func (f *fakeApple) issue(kid string, key *rsa.PrivateKey, audience string) {
	f.t.Helper()

	claims := appleClaims{
		Email:         "reader@privaterelay.appleid.com",
		EmailVerified: "true",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    appleIssuer,
			Subject:   "001234.apple-subject",
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(f.t, err)

	f.mu.Lock()
	f.idToken = signed
	f.mu.Unlock()
}

func newTestVerifier(t *testing.T) (*AppleVerifier, *fakeApple) {
	t.Helper()

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(ecKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	fake := newFakeApple(t, &ecKey.PublicKey)

	v, err := NewAppleVerifier(t.Context(), config.AppleConfig{
		TeamID:     "TEAM123",
		BundleID:   testBundleID,
		KeyID:      "KEY123",
		PrivateKey: string(pemKey),
		TokenURL:   fake.server.URL + "/auth/token",
		KeysURL:    fake.server.URL + "/auth/keys",
	}, fake.server.Client(), logging.Discard())
	require.NoError(t, err)
	return v, fake
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestAppleAuthenticate(t *testing.T) {
	v, fake := newTestVerifier(t)
	key := newRSAKey(t)
	fake.publish("k1", &key.PublicKey)
	fake.issue("k1", key, testBundleID)

	identity, err := v.Authenticate(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "001234.apple-subject", identity.Subject)
	require.NotNil(t, identity.Email)
	assert.Equal(t, "reader@privaterelay.appleid.com", *identity.Email)
	assert.True(t, identity.EmailVerified)

	_, err = v.Authenticate(context.Background(), "good-code")
	require.NoError(t, err)
	assert.EqualValues(t, 1, fake.keysHits.Load(), "keys are cached between sign-ins")
}

func TestAppleRefreshesKeysOnUnknownKid(t *testing.T) {
	v, fake := newTestVerifier(t)
	first := newRSAKey(t)
	fake.publish("k1", &first.PublicKey)
	fake.issue("k1", first, testBundleID)

	_, err := v.Authenticate(context.Background(), "good-code")
	require.NoError(t, err)

	rotated := newRSAKey(t)
	fake.publish("k2", &rotated.PublicKey)
	fake.issue("k2", rotated, testBundleID)

	_, err = v.Authenticate(context.Background(), "good-code")
	require.NoError(t, err)
	assert.EqualValues(t, 2, fake.keysHits.Load())
}

func TestAppleRejectsWrongAudience(t *testing.T) {
	v, fake := newTestVerifier(t)
	key := newRSAKey(t)
	fake.publish("k1", &key.PublicKey)
	fake.issue("k1", key, "com.example.other")

	_, err := v.Authenticate(context.Background(), "good-code")
	assert.True(t, errors.Is(err, domain.ErrAppleTokenRejected))
}

func TestAppleRejectsBadCode(t *testing.T) {
	v, _ := newTestVerifier(t)

	_, err := v.Authenticate(context.Background(), "bad-code")
	assert.True(t, errors.Is(err, domain.ErrAppleTokenRejected))
}

func TestAppleReportsUnavailableKeys(t *testing.T) {
	v, fake := newTestVerifier(t)
	key := newRSAKey(t)
	fake.issue("k1", key, testBundleID)
	fake.keysStatus = http.StatusServiceUnavailable

	_, err := v.Authenticate(context.Background(), "good-code")
	assert.True(t, errors.Is(err, domain.ErrAppleKeysUnavailable))
}

func TestAppleRejectsUnpublishedKid(t *testing.T) {
	v, fake := newTestVerifier(t)
	published := newRSAKey(t)
	fake.publish("k1", &published.PublicKey)

	forged := newRSAKey(t)
	fake.issue("k9", forged, testBundleID)

	_, err := v.Authenticate(context.Background(), "good-code")
	assert.True(t, errors.Is(err, domain.ErrAppleTokenRejected))
	assert.False(t, errors.Is(err, domain.ErrAppleKeysUnavailable))
}

func TestAppleRejectsTokenSignedWithWrongKey(t *testing.T) {
	v, fake := newTestVerifier(t)
	published := newRSAKey(t)
	fake.publish("k1", &published.PublicKey)
	fake.issue("k1", newRSAKey(t), testBundleID)

	_, err := v.Authenticate(context.Background(), "good-code")
	assert.True(t, errors.Is(err, domain.ErrAppleTokenRejected))
}

func TestNewAppleVerifierRequiresConfig(t *testing.T) {
	_, err := NewAppleVerifier(context.Background(), config.AppleConfig{}, nil, nil)
	assert.True(t, errors.Is(err, domain.ErrAppleNotConfigured))

	_, err = NewAppleVerifier(context.Background(), config.AppleConfig{TeamID: "T", BundleID: "B", KeyID: "K", PrivateKey: "garbage"}, nil, nil)
	assert.Error(t, err)
}
