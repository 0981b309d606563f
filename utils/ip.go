package utils

import (
	"context"
	"strings"
	"unicode/utf8"
)

const ipv4MappedPrefix = "::ffff:"

// NormalizeIP turns a raw client address into the identity key used for
// storage and uniqueness comparisons.
func NormalizeIP(raw string) string {
	ip := strings.TrimSpace(raw)

	if ip == "::1" {
		return "127.0.0.1"
	}
	if strings.HasPrefix(strings.ToLower(ip), ipv4MappedPrefix) {
		ip = ip[len(ipv4MappedPrefix):]
	}
	// keys are stored in a varchar column, so invalid bytes are dropped and the cut lands on a rune boundary
	ip = strings.ToValidUTF8(ip, "")
	if utf8.RuneCountInString(ip) > MaxIdentityKeyLength {
		ip = string([]rune(ip)[:MaxIdentityKeyLength])
	}
	return ip
}

var localIPLiterals = map[string]struct{}{
	"127.0.0.1": {},
	"::1":       {},
	"localhost": {},
	"0.0.0.0":   {},
}

var privateIPPrefixes = []string{"10.", "172.", "192.168."}

// IsLocalIP reports whether a normalized key belongs to loopback or private traffic
func IsLocalIP(key string) bool {
	if _, ok := localIPLiterals[key]; ok {
		return true
	}
	for _, prefix := range privateIPPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// FirstForwardedFor returns the client entry of an x-forwarded-for chain
func FirstForwardedFor(chain string) string {
	first, _, _ := strings.Cut(chain, ",")
	return strings.TrimSpace(first)
}

// ResolveClientIP picks the explicit address when given, otherwise the first
// non-empty signal, otherwise UnknownClientIP. The result is not normalized.
func ResolveClientIP(explicit *string, signals ...string) string {
	if explicit != nil {
		if v := strings.TrimSpace(*explicit); v != "" {
			return v
		}
	}
	for _, s := range signals {
		if v := strings.TrimSpace(s); v != "" {
			return v
		}
	}
	return UnknownClientIP
}

// ClientIPFromContext resolves and normalizes the client identity key using
// the address signals stored on ctx by the HTTP layer.
// Precedence: explicit, x-real-ip, x-forwarded-for (first entry), cf-connecting-ip, peer address.
func ClientIPFromContext(ctx context.Context, explicit *string) string {
	return NormalizeIP(ResolveClientIP(
		explicit,
		contextString(ctx, RealIPKey),
		FirstForwardedFor(contextString(ctx, ForwardedForKey)),
		contextString(ctx, CFConnectingIPKey),
		contextString(ctx, IPAddressKey),
	))
}

func contextString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
