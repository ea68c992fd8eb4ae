package directory

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
	"testing"
)

func genKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	return key
}

func pemPublicKey(pub *rsa.PublicKey) string {
	der := x509.MarshalPKCS1PublicKey(pub)
	block := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: der})
	return string(block)
}

// buildRouterBlock renders one `router` descriptor line plus its identity
// key and any exit policy lines.
func buildRouterBlock(address string, orPort, apPort, dirPort, bandwidth int, identity *rsa.PublicKey, policy []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "router %s %d %d %d %d\n", address, orPort, apPort, dirPort, bandwidth)
	b.WriteString(pemPublicKey(identity))
	for _, line := range policy {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// buildSignedDirectory assembles a complete signed directory document,
// computes its signed-range digest, and signs it with signer.
func buildSignedDirectory(t *testing.T, signer *rsa.PrivateKey, versions string, routerBlocks ...string) []byte {
	t.Helper()

	var body strings.Builder
	body.WriteString("signed-directory\n")
	fmt.Fprintf(&body, "recommended-software %s\n", versions)
	for _, blk := range routerBlocks {
		body.WriteString(blk)
	}
	body.WriteString("directory-signature\n")

	digest, err := DirectoryDigest([]byte(body.String()))
	if err != nil {
		t.Fatalf("DirectoryDigest: %v", err)
	}

	sig, err := rsa.SignPKCS1v15(rand.Reader, signer, crypto.Hash(0), digest)
	if err != nil {
		t.Fatalf("rsa.SignPKCS1v15: %v", err)
	}

	body.WriteString("-----BEGIN SIGNATURE-----\n")
	body.WriteString(base64.StdEncoding.EncodeToString(sig))
	body.WriteString("\n-----END SIGNATURE-----\n")

	return []byte(body.String())
}

// signRaw signs digest with signer using the directory protocol's raw
// PKCS#1 v1.5 padding (no DigestInfo prefix).
func signRaw(signer *rsa.PrivateKey, digest []byte) ([]byte, error) {
	return rsa.SignPKCS1v15(rand.Reader, signer, crypto.Hash(0), digest)
}

type stubResolver struct {
	addrs map[string]uint32
}

func (r *stubResolver) ResolveHost(_ context.Context, name string) (uint32, error) {
	addr, ok := r.addrs[name]
	if !ok {
		return 0, fmt.Errorf("no such host %q", name)
	}
	return addr, nil
}
