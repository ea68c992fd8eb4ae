// Package crypto provides the cryptographic primitives the router directory
// subsystem needs: SHA-1 digests of the signed byte range and RSA signature
// verification against a trusted directory authority key.
//
// Security considerations:
// - Random number generation, where needed, uses crypto/rand (CSPRNG)
// - Signature comparison is handled by crypto/rsa itself; callers never
//   compare digests byte-by-byte outside the verification call
package crypto

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1" // #nosec G505 - SHA1 required by the directory protocol's digest format
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// SHA1Size is the size of SHA-1 digests, and thus of a valid directory
// signature payload once RSA-decrypted.
const SHA1Size = 20

// SHA1Hash computes the SHA-1 hash of data.
// #nosec G401 - SHA1 is the digest algorithm mandated by the directory
// protocol's signed-directory format; it is not used for collision
// resistance here, only for interoperability with that wire format.
func SHA1Hash(data []byte) []byte {
	h := sha1.Sum(data) // #nosec G401
	return h[:]
}

// ParseRSAPublicKeyPEM parses a PEM-armored RSA public key of the form
// produced by directory signing keys and router identity/onion keys:
//
//	-----BEGIN RSA PUBLIC KEY-----
//	...
//	-----END RSA PUBLIC KEY-----
//
// The block holds a PKCS#1 encoded public key, not the PKIX form `encoding/pem`
// examples typically show for TLS certificates.
func ParseRSAPublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in RSA public key")
	}
	if block.Type != "RSA PUBLIC KEY" {
		return nil, fmt.Errorf("unexpected PEM block type %q, want RSA PUBLIC KEY", block.Type)
	}

	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS1 public key: %w", err)
	}
	return pub, nil
}

// VerifyDirectorySignature verifies that sig is a valid RSA signature over
// digest under pub, using the directory protocol's raw PKCS#1 v1.5 padding:
// the decrypted payload is the bare digest, with no DigestInfo ASN.1 prefix.
// Passing crypto.Hash(0) tells rsa.VerifyPKCS1v15 to compare the decrypted
// payload directly against digest rather than expect a DigestInfo wrapper.
func VerifyDirectorySignature(pub *rsa.PublicKey, digest, sig []byte) error {
	if len(digest) != SHA1Size {
		return fmt.Errorf("digest must be %d bytes, got %d", SHA1Size, len(digest))
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.Hash(0), digest, sig); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
