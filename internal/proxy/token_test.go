package proxy

import (
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/keys"
)

var (
	testKeyOnce    sync.Once
	testPrivateKey *rsa.PrivateKey
	testPublicKey  *rsa.PublicKey
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testPrivateKey, testPublicKey, err = keys.DeriveRSAKeyPair("test-password", "https://town.example.com")
		if err != nil {
			panic(err)
		}
	})
	return testPrivateKey, testPublicKey
}

func TestDownloadToken_ShouldRoundTrip(t *testing.T) {
	// given
	privateKey, publicKey := testKeys(t)

	// when
	token, expiresAt, err := MintDownloadToken(privateKey, category.Avatar, "avatar-1-aa.png", 15*time.Minute)
	assert.NoError(t, err)
	cat, filename, err := VerifyDownloadToken(publicKey, token)

	// then
	assert.NoError(t, err)
	assert.Equal(t, category.Avatar, cat)
	assert.Equal(t, "avatar-1-aa.png", filename)
	assert.Greater(t, expiresAt, time.Now().Unix())
}

func TestDownloadToken_ShouldExpire(t *testing.T) {
	// given a token whose lifetime already passed
	privateKey, publicKey := testKeys(t)
	token, _, err := MintDownloadToken(privateKey, category.Forum, "media-1-aa.png", -time.Minute)
	assert.NoError(t, err)

	// when
	_, _, err = VerifyDownloadToken(publicKey, token)

	// then
	assert.ErrorContains(t, err, "expired")
}

func TestDownloadToken_ShouldRejectForeignSignatures(t *testing.T) {
	// given a token signed by another deployment's key
	foreignKey, _, err := keys.DeriveRSAKeyPair("other-password", "https://elsewhere.example.com")
	assert.NoError(t, err)
	_, publicKey := testKeys(t)
	token, _, err := MintDownloadToken(foreignKey, category.Forum, "media-1-aa.png", time.Minute)
	assert.NoError(t, err)

	// when
	_, _, err = VerifyDownloadToken(publicKey, token)

	// then
	assert.Error(t, err)
}

func TestDownloadToken_ShouldRejectGarbage(t *testing.T) {
	_, publicKey := testKeys(t)

	_, _, err := VerifyDownloadToken(publicKey, "not-a-token")

	assert.Error(t, err)
}
