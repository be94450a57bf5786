// Package target resolves raw target arguments into concrete
// (context, namespaces) specifications for a reconciliation pass.
package target

import (
	"fmt"
	"strings"
)

// Spec describes one kubeconfig context to scan together with the
// namespaces to scan within it. An empty Namespaces slice means all
// namespaces in the context.
type Spec struct {
	// Context is the kubeconfig context name.
	Context string

	// Namespaces is the ordered list of namespaces to scan.
	// Empty means every namespace the credentials can list.
	Namespaces []string
}

// ParseError indicates a malformed target argument. It is fatal for the
// whole invocation and is raised before any remote call is made.
type ParseError struct {
	// Target is the raw argument that failed to parse.
	Target string

	// Reason describes what is wrong with it.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid target %q: %s", e.Target, e.Reason)
}

// Resolve expands raw target arguments into Specs.
//
// The grammar is CONTEXT[':'NAMESPACE(','NAMESPACE)*]. A bare context
// selects all namespaces. Input order is preserved and duplicates are
// not removed; downstream deduplicates by workload identity key instead,
// so scanning the same context:namespace twice is harmless.
func Resolve(targets []string) ([]Spec, error) {
	specs := make([]Spec, 0, len(targets))
	for _, raw := range targets {
		spec, err := parseOne(raw)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseOne(raw string) (Spec, error) {
	if raw == "" {
		return Spec{}, &ParseError{Target: raw, Reason: "empty target"}
	}

	context, nsList, hasNamespaces := strings.Cut(raw, ":")
	if context == "" {
		return Spec{}, &ParseError{Target: raw, Reason: "missing context name"}
	}
	if strings.ContainsAny(context, ", \t") {
		return Spec{}, &ParseError{Target: raw, Reason: "context name contains invalid characters"}
	}

	if !hasNamespaces {
		return Spec{Context: context}, nil
	}
	if nsList == "" {
		return Spec{}, &ParseError{Target: raw, Reason: "trailing colon without namespaces"}
	}

	namespaces := strings.Split(nsList, ",")
	for _, ns := range namespaces {
		if err := validateNamespace(ns); err != nil {
			return Spec{}, &ParseError{Target: raw, Reason: err.Error()}
		}
	}

	return Spec{Context: context, Namespaces: namespaces}, nil
}

// validateNamespace enforces the RFC 1123 label rules Kubernetes applies
// to namespace names: lowercase alphanumerics and '-', starting and
// ending with an alphanumeric, at most 63 characters.
func validateNamespace(ns string) error {
	if ns == "" {
		return fmt.Errorf("empty namespace")
	}
	if len(ns) > 63 {
		return fmt.Errorf("namespace %q exceeds 63 characters", ns)
	}
	for i, r := range ns {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-':
			if i == 0 || i == len(ns)-1 {
				return fmt.Errorf("namespace %q must start and end with an alphanumeric", ns)
			}
		default:
			return fmt.Errorf("namespace %q contains invalid character %q", ns, r)
		}
	}
	return nil
}
