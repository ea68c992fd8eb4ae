package directory

import (
	"fmt"
	"strconv"

	"github.com/opd-ai/go-tor-directory/pkg/errors"
)

// parseDescriptor consumes a `router` token and the tokens that follow it
// up to (but not including) the next `router`, `directory-signature`, or
// end-of-input token, producing one RelayDescriptor.
//
// On entry, cur holds the already-scanned `router` token. On success, the
// returned lookahead token is the first token following the descriptor; on
// failure, it is the token at which parsing stopped.
func parseDescriptor(s *scanner, cur tok) (*RelayDescriptor, tok, error) {
	if cur.Kind != tokKeyword || cur.Keyword != kwRouter {
		return nil, cur, errors.New(errors.CategoryDirectory, errors.SeverityHigh,
			"descriptor does not start with \"router\"")
	}

	if len(cur.Args) != 5 {
		return nil, s.next(), errors.New(errors.CategoryDirectory, errors.SeverityMedium,
			fmt.Sprintf("wrong number of arguments to \"router\": got %d, want 5", len(cur.Args)))
	}

	d := &RelayDescriptor{Address: cur.Args[0]}

	orPort, err := strconv.ParseUint(cur.Args[1], 10, 16)
	if err != nil || orPort == 0 {
		return nil, s.next(), errors.New(errors.CategoryDirectory, errors.SeverityMedium,
			"or_port unreadable or 0")
	}
	d.ORPort = uint16(orPort)

	if apPort, err := strconv.ParseUint(cur.Args[2], 10, 16); err == nil {
		d.APPort = uint16(apPort)
	}
	if dirPort, err := strconv.ParseUint(cur.Args[3], 10, 16); err == nil {
		d.DirPort = uint16(dirPort)
	}

	bandwidth, err := strconv.ParseUint(cur.Args[4], 10, 32)
	if err != nil || bandwidth == 0 {
		return nil, s.next(), errors.New(errors.CategoryDirectory, errors.SeverityMedium,
			"bandwidth unreadable or 0")
	}
	d.Bandwidth = uint32(bandwidth)

	next := s.next()
	if next.isError() {
		return nil, next, errors.Wrap(errors.CategoryDirectory, errors.SeverityMedium,
			"reading directory", fmt.Errorf("%s", next.Err))
	}
	if next.Kind != tokPublicKey {
		return nil, next, errors.New(errors.CategoryDirectory, errors.SeverityMedium,
			"missing identity key")
	}
	d.IdentityKey = next.PublicKey

	next = s.next()
	if next.isError() {
		return nil, next, errors.Wrap(errors.CategoryDirectory, errors.SeverityMedium,
			"reading directory", fmt.Errorf("%s", next.Err))
	}
	if next.Kind == tokKeyword && next.Keyword == kwSigningKey {
		next = s.next()
		if next.isError() {
			return nil, next, errors.Wrap(errors.CategoryDirectory, errors.SeverityMedium,
				"reading directory", fmt.Errorf("%s", next.Err))
		}
		if next.Kind != tokPublicKey {
			return nil, next, errors.New(errors.CategoryDirectory, errors.SeverityMedium,
				"missing signing key")
		}
		d.SigningKey = next.PublicKey
		next = s.next()
	}

	for next.Kind == tokKeyword && (next.Keyword == kwAccept || next.Keyword == kwReject) {
		if len(next.Args) != 1 {
			// A malformed policy line is dropped and parsing continues
			// rather than aborting the whole descriptor. The dropped
			// line is not logged; neither is a rule that
			// parseExitPolicyRule rejects below.
			next = s.next()
			continue
		}

		kind := PolicyAccept
		if next.Keyword == kwReject {
			kind = PolicyReject
		}
		rule, err := parseExitPolicyRule(kind, next.Args[0])
		if err == nil {
			d.ExitPolicy = append(d.ExitPolicy, rule)
		}

		next = s.next()
		if next.isError() {
			return nil, next, errors.Wrap(errors.CategoryDirectory, errors.SeverityMedium,
				"reading directory", fmt.Errorf("%s", next.Err))
		}
	}

	return d, next, nil
}
