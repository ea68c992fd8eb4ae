package directory

import (
	"bytes"
	"fmt"

	"github.com/opd-ai/go-tor-directory/pkg/crypto"
)

const (
	signedRangeStart = "signed-directory"
	signedRangeEnd   = "directory-signature"
)

// signedRange locates the exact byte substring that a directory signer
// hashes: from the first occurrence of "signed-directory" to, and
// including, the newline that terminates the "directory-signature" line.
// A missing anchor is fatal to the parse.
func signedRange(buf []byte) ([]byte, error) {
	start := bytes.Index(buf, []byte(signedRangeStart))
	if start < 0 {
		return nil, fmt.Errorf("couldn't find %q", signedRangeStart)
	}

	end := bytes.Index(buf[start:], []byte(signedRangeEnd))
	if end < 0 {
		return nil, fmt.Errorf("couldn't find %q", signedRangeEnd)
	}
	end += start

	nl := bytes.IndexByte(buf[end:], '\n')
	if nl < 0 {
		return nil, fmt.Errorf("couldn't find end of line after %q", signedRangeEnd)
	}
	end += nl + 1

	return buf[start:end], nil
}

// DirectoryDigest computes the SHA-1 digest of a document's signed byte
// range, the same digest ParseDirectory verifies a signature against.
// Exposed for round-trip testing and for callers that need the digest
// without performing a full parse.
func DirectoryDigest(buf []byte) ([]byte, error) {
	rng, err := signedRange(buf)
	if err != nil {
		return nil, fmt.Errorf("locating signed range: %w", err)
	}
	return crypto.SHA1Hash(rng), nil
}
