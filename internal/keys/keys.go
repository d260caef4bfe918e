package keys

import (
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const KeySize = 2048

// DeriveRSAKeyPair deterministically derives the keypair that signs
// download tokens. The same password and external URL always yield the same
// keys, so tokens stay valid across restarts without persisting key
// material anywhere.
func DeriveRSAKeyPair(masterPassword, externalURL string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if masterPassword == "" {
		return nil, nil, fmt.Errorf("master password is required for key derivation")
	}
	if externalURL == "" {
		return nil, nil, fmt.Errorf("external URL is required for key derivation")
	}

	// the URL in the seed keeps separate deployments from sharing keys
	seed := masterPassword + externalURL
	hash := sha256.Sum256([]byte(seed))

	reader := hkdf.New(sha256.New, hash[:], []byte("media-server-rsa-salt"), []byte("download-url-keypair"))

	privateKey, err := rsa.GenerateKey(&deterministicReader{reader}, KeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive RSA key pair: %w", err)
	}

	return privateKey, &privateKey.PublicKey, nil
}

// deterministicReader adapts the HKDF stream to the rand.Reader interface
// rsa.GenerateKey expects.
type deterministicReader struct {
	reader io.Reader
}

func (d *deterministicReader) Read(p []byte) (n int, err error) {
	return d.reader.Read(p)
}
