package security

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ErrEgressDenied is returned when an outbound URL fails validation.
var ErrEgressDenied = errors.New("egress denied")

// ValidateEgressURL checks an outbound URL against the scheme rule, the
// private-network denial rule and the domain allowlist, in that order.
// The first failing rule wins. On success the original URL is returned
// unchanged; path and query are never normalized.
//
// The allowlist entry "*" admits any public host. It never bypasses the
// private-network rule.
func ValidateEgressURL(rawURL string, allowedDomains []string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", fmt.Errorf("%w: URL cannot be empty", ErrEgressDenied)
	}
	if strings.ContainsAny(rawURL, " \t\n\r") {
		return "", fmt.Errorf("%w: URL cannot contain whitespace", ErrEgressDenied)
	}
	if !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("%w: Only https:// URLs are allowed", ErrEgressDenied)
	}
	if len(allowedDomains) == 0 {
		return "", fmt.Errorf("%w: browser.allowed_domains is empty; no destination is allowed", ErrEgressDenied)
	}

	host, err := extractHost(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEgressDenied, err)
	}

	if isPrivateOrLocalHost(host) {
		return "", fmt.Errorf("%w: Blocked local/private host: %s", ErrEgressDenied, host)
	}

	if !hostMatchesAllowlist(host, allowedDomains) {
		return "", fmt.Errorf("%w: Host '%s' is not in browser.allowed_domains", ErrEgressDenied, host)
	}

	return rawURL, nil
}

// extractHost pulls the host out of an https URL, rejecting userinfo and
// stripping any port. The result is lowercased.
func extractHost(rawURL string) (string, error) {
	rest := strings.TrimPrefix(rawURL, "https://")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if strings.Contains(rest, "@") {
		return "", errors.New("URLs with userinfo are not supported")
	}

	host := rest
	if strings.HasPrefix(host, "[") {
		// Bracketed IPv6 literal, possibly with a port.
		end := strings.Index(host, "]")
		if end < 0 {
			return "", errors.New("invalid host")
		}
		host = host[1:end]
	} else if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return "", errors.New("URL has no host")
	}
	return host, nil
}

// isPrivateOrLocalHost reports whether host names a loopback, link-local
// or private-network target, either literally or as an IP address.
func isPrivateOrLocalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return true
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}

// hostMatchesAllowlist checks host against the allowlist: exact match,
// strict subdomain of an entry, or the "*" wildcard.
func hostMatchesAllowlist(host string, allowedDomains []string) bool {
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if d == "*" {
			return true
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
