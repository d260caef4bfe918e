package proxy

import (
	"crypto/rsa"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"

	"github.com/townsquare/media_server/internal/category"
)

var timeNowFunc = time.Now

// downloadClaims binds a signed download grant to one stored file.
type downloadClaims struct {
	Category category.Category `json:"category"`
	Filename string            `json:"filename"`
	jwt.RegisteredClaims
}

// MintDownloadToken signs a grant to fetch one file through the download
// endpoint, valid for ttl.
func MintDownloadToken(privateKey *rsa.PrivateKey, cat category.Category, filename string, ttl time.Duration) (string, int64, error) {
	now := timeNowFunc()
	expiresAt := now.Add(ttl)

	claims := downloadClaims{
		Category: cat,
		Filename: filename,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(privateKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign download token: %w", err)
	}
	return signed, expiresAt.Unix(), nil
}

// VerifyDownloadToken checks expiry and signature and returns the file the
// token grants access to.
func VerifyDownloadToken(publicKey *rsa.PublicKey, token string) (category.Category, string, error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse download token: %w", err)
	}

	var claims downloadClaims
	if err := json.Unmarshal(msg.Payload(), &claims); err != nil {
		return "", "", fmt.Errorf("failed to unmarshal download token claims: %w", err)
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(timeNowFunc()) {
		return "", "", fmt.Errorf("download token has expired")
	}
	if claims.Filename == "" {
		return "", "", fmt.Errorf("download token names no file")
	}

	verified, err := jws.Verify([]byte(token), jws.WithKey(jwa.RS256(), publicKey))
	if err != nil {
		return "", "", fmt.Errorf("failed to verify download token signature: %w", err)
	}
	if len(verified) == 0 {
		return "", "", fmt.Errorf("download token signature verification failed")
	}

	return claims.Category, claims.Filename, nil
}
