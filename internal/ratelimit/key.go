package ratelimit

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"unicode"
)

// ErrInvalidClientID is returned for identifiers that cannot name a client.
var ErrInvalidClientID = errors.New("invalid client identifier")

// maxClientIDLength caps identifiers so keys stay bounded in the store.
const maxClientIDLength = 255

// ClientKey is the store key of one client's counter.
type ClientKey string

// BuildKey derives the counter key for a client identifier.
// IP literals are canonicalised so that one address always maps to one key.
func BuildKey(prefix, clientID string) (ClientKey, error) {
	id := strings.TrimSpace(clientID)

	switch {
	case id == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidClientID)
	case len(id) > maxClientIDLength:
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidClientID, maxClientIDLength)
	case strings.ContainsFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }):
		return "", fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidClientID)
	}

	if addr, err := netip.ParseAddr(id); err == nil {
		id = addr.Unmap().String()
	}

	return ClientKey(prefix + id), nil
}
