package identity

import (
	"regexp"
	"strings"
)

// Kind classifies the origin of an identity key.
type Kind string

const (
	KindWallet Kind = "wallet"
	KindEmail  Kind = "email"
	KindGuest  Kind = "guest"
)

var hexAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Normalize canonicalizes a raw identity into the key that owns a balance.
// Wallet addresses are lowercased, emails are lowercased and trimmed,
// guest ids are passed through with the guest: prefix preserved.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case hexAddressRe.MatchString(s):
		return strings.ToLower(s)
	case strings.Contains(s, "@"):
		return strings.ToLower(s)
	case strings.HasPrefix(s, "guest:"):
		return s
	default:
		return s
	}
}

// KindOf reports what sort of identity a normalized key is.
func KindOf(key string) Kind {
	switch {
	case hexAddressRe.MatchString(key):
		return KindWallet
	case strings.Contains(key, "@"):
		return KindEmail
	default:
		return KindGuest
	}
}

// EmailDomain returns the domain part of an email identity, or "" for
// non-email keys.
func EmailDomain(key string) string {
	at := strings.LastIndex(key, "@")
	if at < 0 || at == len(key)-1 {
		return ""
	}
	return key[at+1:]
}

// Valid rejects empty or absurdly long keys before they reach the store.
func Valid(key string) bool {
	return key != "" && len(key) <= 320
}
