// Package raopcrypto implements the two cryptographic operations RAOP 1
// needs: signing the Apple-Challenge handshake with the server's RSA
// identity, and unwrapping/decrypting the AES-128-CBC audio stream.
package raopcrypto

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"embed"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
)

//go:embed rsa_key.pem
var embeddedKey embed.FS

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// Key returns the process-wide RSA private key, loading it from the
// embedded PEM the first time it is called. Every AppleChallenger and
// Cipher in the process shares this single key, matching the teacher's
// pattern of package-level immutable singletons for shared config.
func Key() (*rsa.PrivateKey, error) {
	keyOnce.Do(func() {
		raw, err := embeddedKey.ReadFile("rsa_key.pem")
		if err != nil {
			keyErr = fmt.Errorf("raopcrypto: read embedded key: %w", err)
			return
		}
		block, _ := pem.Decode(raw)
		if block == nil {
			keyErr = errors.New("raopcrypto: no PEM block in embedded key")
			return
		}
		key, keyErr = x509.ParsePKCS1PrivateKey(block.Bytes)
		if keyErr != nil {
			keyErr = fmt.Errorf("raopcrypto: parse embedded key: %w", keyErr)
		}
	})
	return key, keyErr
}

// AppleChallenger answers Apple-Challenge headers for one session, bound
// to the session's local address and the process's MAC address.
type AppleChallenger struct {
	ipMAC []byte
}

// NewAppleChallenger builds a challenger from a local IP (4 or 16 bytes)
// and a 6-byte MAC address. The tuple is immutable for the life of the
// session it belongs to.
func NewAppleChallenger(localIP net.IP, mac net.HardwareAddr) (*AppleChallenger, error) {
	ip4 := localIP.To4()
	var ipBytes []byte
	if ip4 != nil {
		ipBytes = ip4
	} else if ip16 := localIP.To16(); ip16 != nil {
		ipBytes = ip16
	} else {
		return nil, fmt.Errorf("raopcrypto: invalid local IP %v", localIP)
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("raopcrypto: MAC must be 6 bytes, got %d", len(mac))
	}

	ipMAC := make([]byte, 0, len(ipBytes)+6)
	ipMAC = append(ipMAC, ipBytes...)
	ipMAC = append(ipMAC, mac...)

	return &AppleChallenger{ipMAC: ipMAC}, nil
}

// Response computes the Apple-Response header value for a base64
// Apple-Challenge header. The signature is PKCS#1 v1.5 over the raw
// concatenated bytes with no digest prepended (crypto.Hash(0)), matching
// the reference implementation's "sign_raw" behaviour (see SPEC_FULL §5).
func (c *AppleChallenger) Response(challengeB64 string) (string, error) {
	challenge, err := base64.StdEncoding.DecodeString(challengeB64)
	if err != nil {
		return "", fmt.Errorf("raopcrypto: decode challenge: %w", err)
	}

	msg := make([]byte, 0, len(challenge)+len(c.ipMAC))
	msg = append(msg, challenge...)
	msg = append(msg, c.ipMAC...)

	privKey, err := Key()
	if err != nil {
		return "", err
	}

	sig, err := rsa.SignPKCS1v15(rand.Reader, privKey, crypto.Hash(0), msg)
	if err != nil {
		return "", fmt.Errorf("raopcrypto: sign challenge: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(sig)
	return strings.TrimRight(encoded, "="), nil
}

// Cipher describes an AES-128-CBC decryption key+IV pair unwrapped from
// SDP's rsaaeskey/aesiv attributes. Per spec.md §4.3 / §9, the CBC state
// is never carried across packets: each Decrypt call starts a fresh
// decryptor from the same key and IV, so Cipher itself is immutable.
type Cipher struct {
	key []byte
	iv  []byte
}

// NewCipher unwraps a base64-free, already-decoded rsaaeskey ciphertext
// with RSA-OAEP/SHA-1 to recover the 16-byte AES key, and pairs it with
// the raw 16-byte aesiv.
func NewCipher(rsaWrappedKey, iv []byte) (*Cipher, error) {
	privKey, err := Key()
	if err != nil {
		return nil, err
	}

	aesKey, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, privKey, rsaWrappedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("raopcrypto: unwrap aes key: %w", err)
	}
	if len(aesKey) != 16 {
		return nil, fmt.Errorf("raopcrypto: unwrapped aes key has length %d, want 16", len(aesKey))
	}
	if len(iv) != 16 {
		return nil, fmt.Errorf("raopcrypto: aesiv has length %d, want 16", len(iv))
	}

	return &Cipher{key: aesKey, iv: iv}, nil
}

// Decrypt decrypts raw in place, in 16-byte blocks, starting a fresh
// CBC chain from the cipher's key and IV every call. Any trailing bytes
// smaller than a block are passed through unchanged — the AirPlay
// convention of not padding the final partial block.
func (c *Cipher) Decrypt(raw []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("raopcrypto: new aes cipher: %w", err)
	}
	decrypter := cipher.NewCBCDecrypter(block, c.iv)

	out := make([]byte, len(raw))
	copy(out, raw)

	fullBlocks := (len(out) / aes.BlockSize) * aes.BlockSize
	if fullBlocks > 0 {
		decrypter.CryptBlocks(out[:fullBlocks], out[:fullBlocks])
	}

	return out, nil
}
