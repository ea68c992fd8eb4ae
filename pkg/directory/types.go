// Package directory parses and maintains the signed router directory of an
// onion-routing node: the document that enumerates participating relays,
// their keys, exit policies, and advertised endpoints.
package directory

import "crypto/rsa"

// MaxRoutersInDir bounds the number of descriptors a single directory may
// hold. A directory document with more router entries than this has the
// overflow silently dropped (and logged) rather than the parse aborted.
const MaxRoutersInDir = 1024

// PolicyKind is the verdict a single exit-policy rule assigns.
type PolicyKind int

const (
	// PolicyAccept permits the connection described by a matching rule.
	PolicyAccept PolicyKind = iota
	// PolicyReject forbids the connection described by a matching rule.
	PolicyReject
)

func (k PolicyKind) String() string {
	if k == PolicyReject {
		return "reject"
	}
	return "accept"
}

// ExitPolicyRule is one line of a relay's exit policy: "accept ADDR:PORT"
// or "reject ADDR:PORT". Address is parsed and retained for diagnostics and
// round-trip but is not consulted by ExitPolicyMatch; only Port matters.
type ExitPolicyRule struct {
	Kind    PolicyKind
	Address string
	Port    string
	Raw     string
}

// RelayDescriptor is one relay's advertised endpoint, keys, and exit
// policy, assembled from a `router` block of the directory document.
type RelayDescriptor struct {
	// Address is the original textual hostname from the router line.
	Address string
	// Addr is the resolved 32-bit IPv4 address in host byte order. Zero
	// until the resolver pass runs.
	Addr uint32

	ORPort  uint16
	APPort  uint16
	DirPort uint16

	Bandwidth uint32

	IdentityKey *rsa.PublicKey
	SigningKey  *rsa.PublicKey

	ExitPolicy []ExitPolicyRule
}

// Directory is a fully parsed collection of relay descriptors plus the
// software-version compatibility line from a signed directory document.
type Directory struct {
	Routers []*RelayDescriptor

	// SoftwareVersions is the comma-separated version list from the
	// directory's recommended-software line. Empty when the Directory was
	// produced by the router-list-only parse.
	SoftwareVersions string
}
