package directory

import (
	"strings"
	"testing"
)

func TestScannerKeywordLine(t *testing.T) {
	s := newScanner([]byte("recommended-software 1.0.0,1.0.1\n"))
	tk := s.next()
	if tk.Kind != tokKeyword || tk.Keyword != kwRecommendedSoftware {
		t.Fatalf("got %+v", tk)
	}
	if len(tk.Args) != 1 || tk.Args[0] != "1.0.0,1.0.1" {
		t.Fatalf("args = %v", tk.Args)
	}
}

func TestScannerEOF(t *testing.T) {
	s := newScanner([]byte("   \n  # comment only\n"))
	tk := s.next()
	if tk.Kind != tokEOF {
		t.Fatalf("got %+v, want EOF", tk)
	}
}

func TestScannerUnknownKeyword(t *testing.T) {
	s := newScanner([]byte("bogus arg\n"))
	tk := s.next()
	if tk.Kind != tokError {
		t.Fatalf("got %+v, want error", tk)
	}
}

func TestScannerTooManyArguments(t *testing.T) {
	s := newScanner([]byte("router a 1 2 3 4 5 6 7 8 9\n"))
	tk := s.next()
	if tk.Kind != tokError {
		t.Fatalf("got %+v, want error for too many args", tk)
	}
}

func TestScannerFourArguments(t *testing.T) {
	s := newScanner([]byte("router a 1 2 3\n"))
	tk := s.next()
	if tk.Kind != tokKeyword || len(tk.Args) != 4 {
		t.Fatalf("got %+v, want 4 args (caller rejects wrong count)", tk)
	}
}

func TestScannerCommentSkipped(t *testing.T) {
	s := newScanner([]byte("# a comment\nrouter a 1 2 3 4\n"))
	tk := s.next()
	if tk.Kind != tokKeyword || tk.Keyword != kwRouter {
		t.Fatalf("got %+v", tk)
	}
}

func TestScannerPublicKey(t *testing.T) {
	key := genKey(t)
	doc := pemPublicKey(&key.PublicKey)
	s := newScanner([]byte(doc))
	tk := s.next()
	if tk.Kind != tokPublicKey {
		t.Fatalf("got %+v, want public key", tk)
	}
	if !tk.PublicKey.Equal(&key.PublicKey) {
		t.Error("parsed key does not match original")
	}
	// Cursor should be at EOF now.
	tk = s.next()
	if tk.Kind != tokEOF {
		t.Fatalf("got %+v, want EOF after key block", tk)
	}
}

func TestScannerPublicKeyMissingEndTag(t *testing.T) {
	s := newScanner([]byte("-----BEGIN RSA PUBLIC KEY-----\nMISSING\n"))
	tk := s.next()
	if tk.Kind != tokError {
		t.Fatalf("got %+v, want error for missing end tag", tk)
	}
}

func TestScannerSignatureBlock(t *testing.T) {
	key := genKey(t)
	sig := make([]byte, 128)
	_ = key
	doc := "-----BEGIN SIGNATURE-----\n" + b64(sig) + "\n-----END SIGNATURE-----\n"
	s := newScanner([]byte(doc))
	tk := s.next()
	if tk.Kind != tokSignature {
		t.Fatalf("got %+v, want signature", tk)
	}
	if len(tk.Signature) != 128 {
		t.Fatalf("signature length = %d, want 128", len(tk.Signature))
	}
}

func TestScannerSignatureWrongLength(t *testing.T) {
	sig := make([]byte, 127)
	doc := "-----BEGIN SIGNATURE-----\n" + b64(sig) + "\n-----END SIGNATURE-----\n"
	s := newScanner([]byte(doc))
	tk := s.next()
	if tk.Kind != tokError {
		t.Fatalf("got %+v, want error for 127-byte signature", tk)
	}

	sig129 := make([]byte, 129)
	doc = "-----BEGIN SIGNATURE-----\n" + b64(sig129) + "\n-----END SIGNATURE-----\n"
	s = newScanner([]byte(doc))
	tk = s.next()
	if tk.Kind != tokError {
		t.Fatalf("got %+v, want error for 129-byte signature", tk)
	}
}

func TestScannerHashInArmorNotComment(t *testing.T) {
	// A '#' byte inside a PEM block must be consumed verbatim, not treated
	// as a comment. A PEM header line inside the block carries the '#';
	// a comment line before the block is skipped as usual.
	key := genKey(t)
	armored := strings.Replace(pemPublicKey(&key.PublicKey),
		pubKeyBeginTag, pubKeyBeginTag+"Comment: #not-a-comment\n\n", 1)
	doc := "#leading comment\n" + armored
	s := newScanner([]byte(doc))
	tk := s.next()
	if tk.Kind != tokPublicKey {
		t.Fatalf("got %+v, want public key after leading comment", tk)
	}
}

func b64(b []byte) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	var out []byte
	for i := 0; i < len(b); i += 3 {
		var chunk [3]byte
		n := copy(chunk[:], b[i:min(i+3, len(b))])
		out = append(out,
			alphabet[chunk[0]>>2],
			alphabet[(chunk[0]&0x03)<<4|chunk[1]>>4],
		)
		if n > 1 {
			out = append(out, alphabet[(chunk[1]&0x0f)<<2|chunk[2]>>6])
		} else {
			out = append(out, '=')
		}
		if n > 2 {
			out = append(out, alphabet[chunk[2]&0x3f])
		} else {
			out = append(out, '=')
		}
	}
	return string(out)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
