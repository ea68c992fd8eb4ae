package directory

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/opd-ai/go-tor-directory/pkg/crypto"
)

const (
	pubKeyBeginTag = "-----BEGIN RSA PUBLIC KEY-----\n"
	pubKeyEndTag   = "-----END RSA PUBLIC KEY-----\n"
	sigBeginTag    = "-----BEGIN SIGNATURE-----\n"
	sigEndTag      = "-----END SIGNATURE-----\n"

	maxArgs         = 8
	signatureRawLen = 128
)

// keyword identifies a recognized keyword command. An unrecognized leading
// word is a scan error, not a keyword.
type keyword int

const (
	kwAccept keyword = iota
	kwDirectorySignature
	kwReject
	kwRouter
	kwRecommendedSoftware
	kwSignedDirectory
	kwSigningKey
)

var keywordTable = map[string]keyword{
	"accept":               kwAccept,
	"directory-signature":  kwDirectorySignature,
	"reject":               kwReject,
	"router":               kwRouter,
	"recommended-software": kwRecommendedSoftware,
	"signed-directory":     kwSignedDirectory,
	"signing-key":          kwSigningKey,
}

// tokenKind discriminates the scanner's tagged-union token type.
type tokenKind int

const (
	tokKeyword tokenKind = iota
	tokPublicKey
	tokSignature
	tokEOF
	tokError
)

// tok is the scanner's output: a discriminated union carrying only the
// field(s) that apply to its Kind. Ownership of PublicKey/Signature passes
// to whatever consumes the token.
type tok struct {
	Kind    tokenKind
	Keyword keyword
	Args    []string

	PublicKey *rsa.PublicKey
	Signature []byte

	Err string
}

func (t tok) isEOF() bool   { return t.Kind == tokEOF }
func (t tok) isError() bool { return t.Kind == tokError }

// scanner is a cursor-based lexical scanner over a directory document
// buffer. Besides the decoded payloads of public-key and signature tokens,
// it allocates a string for each keyword argument, and indexFrom copies the
// remaining buffer into a string for each armor tag search.
type scanner struct {
	buf []byte
	pos int
}

func newScanner(buf []byte) *scanner {
	return &scanner{buf: buf}
}

// offset returns the cursor position before the next token is scanned.
func (s *scanner) offset() int { return s.pos }

func (s *scanner) peekByte() (byte, bool) {
	if s.pos >= len(s.buf) {
		return 0, false
	}
	return s.buf[s.pos], true
}

// eatWhitespace advances past spaces, tabs, newlines, and '#' comments that
// run to the next newline.
func (s *scanner) eatWhitespace() {
	for {
		b, ok := s.peekByte()
		if !ok {
			return
		}
		if isSpace(b) {
			s.pos++
			continue
		}
		if b == '#' {
			for {
				b, ok := s.peekByte()
				if !ok || b == '\n' {
					break
				}
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *scanner) eatWhitespaceNoNL() {
	for {
		b, ok := s.peekByte()
		if !ok || (b != ' ' && b != '\t') {
			return
		}
		s.pos++
	}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// findWhitespace returns the index of the next whitespace byte, '#', or end
// of buffer, starting from "from".
func (s *scanner) findWhitespace(from int) int {
	i := from
	for i < len(s.buf) && !isSpace(s.buf[i]) && s.buf[i] != '#' {
		i++
	}
	return i
}

func (s *scanner) indexFrom(sub string, from int) int {
	idx := strings.Index(string(s.buf[from:]), sub)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// next scans exactly one token starting at the current cursor and advances
// the cursor past it.
func (s *scanner) next() tok {
	s.eatWhitespace()

	b, ok := s.peekByte()
	if !ok {
		return tok{Kind: tokEOF}
	}

	if b == '-' {
		return s.scanArmored()
	}

	return s.scanKeyword()
}

func (s *scanner) scanArmored() tok {
	nl := s.indexFrom("\n", s.pos)
	if nl < 0 {
		return tok{Kind: tokError, Err: "no newline at EOF"}
	}
	lineEnd := nl + 1
	line := string(s.buf[s.pos:lineEnd])

	switch {
	case line == pubKeyBeginTag:
		endIdx := s.indexFrom(pubKeyEndTag, s.pos)
		if endIdx < 0 {
			return tok{Kind: tokError, Err: "no public key end tag found"}
		}
		blockEnd := endIdx + len(pubKeyEndTag)
		armor := s.buf[s.pos:blockEnd]
		pub, err := crypto.ParseRSAPublicKeyPEM(armor)
		if err != nil {
			return tok{Kind: tokError, Err: "couldn't parse public key: " + err.Error()}
		}
		s.pos = blockEnd
		return tok{Kind: tokPublicKey, PublicKey: pub}

	case line == sigBeginTag:
		s.pos = lineEnd
		endIdx := s.indexFrom(sigEndTag, s.pos)
		if endIdx < 0 {
			return tok{Kind: tokError, Err: "no signature end tag found"}
		}
		encoded := strings.TrimSpace(string(s.buf[s.pos:endIdx]))
		sig, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return tok{Kind: tokError, Err: "error decoding signature: " + err.Error()}
		}
		if len(sig) != signatureRawLen {
			return tok{Kind: tokError, Err: fmt.Sprintf("bad length on decoded signature: %d", len(sig))}
		}
		blockEnd := endIdx + len(sigEndTag)
		s.pos = blockEnd
		return tok{Kind: tokSignature, Signature: sig}

	default:
		return tok{Kind: tokError, Err: "unrecognized begin line"}
	}
}

// scanKeyword scans a keyword command line: the leading word, followed by
// up to maxArgs whitespace-separated arguments, terminated by a newline.
func (s *scanner) scanKeyword() tok {
	wordEnd := s.findWhitespace(s.pos)
	if wordEnd == s.pos {
		return tok{Kind: tokError, Err: "unexpected EOF"}
	}
	word := string(s.buf[s.pos:wordEnd])
	kw, ok := keywordTable[word]
	if !ok {
		return tok{Kind: tokError, Err: fmt.Sprintf("unrecognized command %q", word)}
	}

	atNL := wordEnd < len(s.buf) && s.buf[wordEnd] == '\n'
	s.pos = wordEnd
	s.eatWhitespaceNoNL()

	var args []string
	done := atNL
	for !done {
		b, ok := s.peekByte()
		if !ok || b == '\n' {
			break
		}
		if b == '#' {
			// Trailing comment: consume to end of line rather than treat
			// '#' as the start of a (necessarily empty) argument, which
			// would otherwise leave the cursor stuck at the same offset.
			for {
				b, ok := s.peekByte()
				if !ok || b == '\n' {
					break
				}
				s.pos++
			}
			break
		}
		argEnd := s.findWhitespace(s.pos)
		if argEnd < len(s.buf) && s.buf[argEnd] == '\n' {
			done = true
		}
		args = append(args, string(s.buf[s.pos:argEnd]))
		s.pos = argEnd
		if done {
			break
		}
		s.eatWhitespaceNoNL()
	}

	if len(args) > maxArgs {
		return tok{Kind: tokError, Err: "too many arguments"}
	}

	// Advance past the terminating newline, if present.
	if b, ok := s.peekByte(); ok && b == '\n' {
		s.pos++
	}

	return tok{Kind: tokKeyword, Keyword: kw, Args: args}
}
