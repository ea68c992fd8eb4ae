package directory

import (
	"crypto/rsa"
	"strings"

	"github.com/opd-ai/go-tor-directory/pkg/crypto"
	"github.com/opd-ai/go-tor-directory/pkg/errors"
	"github.com/opd-ai/go-tor-directory/pkg/logger"
)

// ParseDirectory parses a complete signed directory document into a new
// Directory. If trustedKey is non-nil, the document's signature is
// verified against it before the directory is returned; a nil trustedKey
// skips signature verification but the document is still structurally
// validated.
//
// Grammar:
//
//	signed-directory
//	recommended-software <comma-separated-versions>
//	<router-descriptor>*
//	directory-signature
//	-----BEGIN SIGNATURE-----
//	<base64>
//	-----END SIGNATURE-----
//	<EOF>
//
// If any step fails, an error is returned and the caller's previously
// installed directory (if any) is left untouched — ParseDirectory never
// mutates existing state.
func ParseDirectory(buf []byte, trustedKey *rsa.PublicKey, log *logger.Logger) (*Directory, error) {
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.Component("directory")

	digest, err := DirectoryDigest(buf)
	if err != nil {
		return nil, errors.Wrap(errors.CategoryDirectory, errors.SeverityHigh,
			"unable to compute digest of directory", err)
	}

	s := newScanner(buf)

	t := s.next()
	if t.isError() {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh, t.Err)
	}
	if t.Kind != tokKeyword || t.Keyword != kwSignedDirectory {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh,
			"expected \"signed-directory\"")
	}

	t = s.next()
	if t.isError() {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh, t.Err)
	}
	if t.Kind != tokKeyword || t.Keyword != kwRecommendedSoftware {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh,
			"expected \"recommended-software\"")
	}
	if len(t.Args) != 1 {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh,
			"invalid recommended-software line")
	}
	versions := t.Args[0]

	t = s.next()
	if t.isError() {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh, t.Err)
	}

	dir, t, err := parseRouterList(s, t, log)
	if err != nil {
		return nil, err
	}
	dir.SoftwareVersions = versions

	if t.Kind != tokKeyword || t.Keyword != kwDirectorySignature {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh,
			"expected \"directory-signature\"")
	}

	t = s.next()
	if t.isError() {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh, t.Err)
	}
	if t.Kind != tokSignature {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh,
			"expected signature block")
	}

	if trustedKey != nil {
		if err := crypto.VerifyDirectorySignature(trustedKey, digest, t.Signature); err != nil {
			return nil, errors.Wrap(errors.CategoryCrypto, errors.SeverityHigh,
				"invalid directory signature", err)
		}
	}

	t = s.next()
	if t.isError() {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh, t.Err)
	}
	if t.Kind != tokEOF {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh,
			"expected end of directory")
	}

	return dir, nil
}

// ParseRouterList parses the bare sequence of `router` descriptors,
// omitting the signed-directory header, recommended-software line,
// signature footer, and trailing end-of-input check that the full
// signed-directory parse requires. SoftwareVersions is left unset.
func ParseRouterList(buf []byte, log *logger.Logger) (*Directory, error) {
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.Component("directory")

	s := newScanner(buf)
	t := s.next()
	if t.isError() {
		return nil, errors.New(errors.CategoryDirectory, errors.SeverityHigh, t.Err)
	}

	dir, _, err := parseRouterList(s, t, log)
	return dir, err
}

// parseRouterList drives the descriptor parser across the sequence of
// `router` tokens starting at lookahead t, appending each result to a
// directory bounded by MaxRoutersInDir. Overflow descriptors are dropped
// and logged, not fatal to the parse.
func parseRouterList(s *scanner, t tok, log *logger.Logger) (*Directory, tok, error) {
	dir := &Directory{}

	for t.Kind == tokKeyword && t.Keyword == kwRouter {
		var desc *RelayDescriptor
		var err error
		desc, t, err = parseDescriptor(s, t)
		if err != nil {
			log.Warn("error reading router descriptor", "error", err)
			return nil, t, err
		}

		if len(dir.Routers) >= MaxRoutersInDir {
			log.Warn("too many routers in directory, dropping descriptor",
				"address", desc.Address, "max", MaxRoutersInDir)
			continue
		}

		dir.Routers = append(dir.Routers, desc)
	}

	return dir, t, nil
}

// compareRecommendedVersions reports whether myVersion appears in the
// comma-separated list versions, matched as a whole comma-delimited token
// (no prefix match, no substring match).
func compareRecommendedVersions(myVersion, versions string) bool {
	for _, v := range strings.Split(versions, ",") {
		if v == myVersion {
			return true
		}
	}
	return false
}

// CheckVersionCompatibility checks myVersion against a directory's
// SoftwareVersions line per spec §4.4: exact comma-separated substring
// match, length-equal tokens only. An empty myVersion always fails.
func CheckVersionCompatibility(myVersion string, dir *Directory) bool {
	if myVersion == "" {
		return false
	}
	return compareRecommendedVersions(myVersion, dir.SoftwareVersions)
}
