package directory

import (
	"fmt"
	"strconv"
	"strings"
)

// parseExitPolicyRule parses a single accept/reject argument of the form
// "ADDR:PORT" into a rule. The caller supplies the rule's Kind; the raw
// line kept for diagnostics is reconstructed here from kind and arg.
func parseExitPolicyRule(kind PolicyKind, arg string) (ExitPolicyRule, error) {
	colon := strings.LastIndexByte(arg, ':')
	if colon < 0 {
		return ExitPolicyRule{}, fmt.Errorf("couldn't parse exit policy line %q: missing ':'", arg)
	}
	addr := arg[:colon]
	port := arg[colon+1:]
	if addr == "" || port == "" {
		return ExitPolicyRule{}, fmt.Errorf("couldn't parse exit policy line %q: empty address or port", arg)
	}

	return ExitPolicyRule{
		Kind:    kind,
		Address: addr,
		Port:    port,
		Raw:     fmt.Sprintf("%s %s", kind, arg),
	}, nil
}

// ExitPolicyMatch evaluates a destination port against a relay's exit
// policy and returns true if the connection should be accepted.
//
// Rules are traversed in order; the first rule whose Port is "*" or equals
// port decimally decides the verdict. If no rule matches, the default
// verdict is accept. The rule's Address is deliberately ignored: the
// original matcher never consulted it, and this revision preserves that
// behavior rather than silently changing semantics.
func ExitPolicyMatch(policy []ExitPolicyRule, port uint16) bool {
	portStr := strconv.Itoa(int(port))
	for _, rule := range policy {
		if rule.Port == "*" || rule.Port == portStr {
			return rule.Kind == PolicyAccept
		}
	}
	return true
}
