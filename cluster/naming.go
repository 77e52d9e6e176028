package cluster

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

const (
	namePrefix = "testpods"

	// suffixLength random characters keep parallel runs from colliding.
	suffixLength = 5

	// maxNameLength is the Kubernetes limit for namespace names.
	maxNameLength = 63
)

var (
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]+`)
	suffixAlphabet = []byte("abcdefghijklmnopqrstuvwxyz0123456789")
)

// GenerateName produces a namespace name of the form
// "testpods-<context>-<suffix>" (or "testpods-<suffix>" for an empty
// context). The context is sanitized to DNS-1123 and truncated so the
// result never exceeds the Kubernetes 63-character limit.
func GenerateName(context string) string {
	sanitized := sanitize(context)
	if sanitized == "" {
		return namePrefix + "-" + randomSuffix()
	}

	base := namePrefix + "-" + sanitized + "-"
	if overflow := len(base) + suffixLength - maxNameLength; overflow > 0 {
		sanitized = strings.TrimRight(sanitized[:len(sanitized)-overflow], "-")
		base = namePrefix + "-" + sanitized + "-"
	}
	return base + randomSuffix()
}

// NameSupplier returns a supplier that generates names with a fixed
// context, for installing as a namespace-name default.
func NameSupplier(context string) func() string {
	return func() string {
		return GenerateName(context)
	}
}

// sanitize lowers the input and replaces every run of characters outside
// [a-z0-9] with a single hyphen, trimming hyphens at both ends.
func sanitize(s string) string {
	lowered := strings.ToLower(s)
	return strings.Trim(nonAlnum.ReplaceAllString(lowered, "-"), "-")
}

func randomSuffix() string {
	b := make([]byte, suffixLength)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(b)
}
