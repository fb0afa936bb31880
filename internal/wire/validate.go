package wire

import (
	"net"
	"strings"
)

const maxNickLength = 30

// casefold applies RFC 1459 casemapping: letters fold as usual, plus
// { } | ^ fold onto [ ] \ ~.
func casefold(s string) string {
	b := []byte(strings.ToLower(s))
	for i, c := range b {
		switch c {
		case '{':
			b[i] = '['
		case '}':
			b[i] = ']'
		case '|':
			b[i] = '\\'
		case '^':
			b[i] = '~'
		}
	}
	return string(b)
}

// Casefold exports RFC 1459 casemapping for use as a map key normalizer.
func Casefold(s string) string { return casefold(s) }

// ValidNick reports whether s is a legal nickname.
func ValidNick(s string) bool {
	if s == "" || len(s) > maxNickLength {
		return false
	}
	special := "[]\\`_^{|}"
	first := rune(s[0])
	if !isLetter(first) && !strings.ContainsRune(special, first) {
		return false
	}
	for _, r := range s[1:] {
		if !isLetter(r) && !isDigit(r) && !strings.ContainsRune(special, r) && r != '-' {
			return false
		}
	}
	return true
}

// ValidChannel reports whether s is a legal channel name.
func ValidChannel(s string) bool {
	if len(s) < 2 || len(s) > 50 {
		return false
	}
	switch s[0] {
	case '#', '&', '!', '+':
	default:
		return false
	}
	return !strings.ContainsAny(s, " ,\x07:")
}

// ValidUser reports whether s is a legal USER ident field.
func ValidUser(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	return !strings.ContainsAny(s, " \x00\r\n@")
}

func isLetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isDigit(r rune) bool  { return r >= '0' && r <= '9' }

// MaskMatches reports whether host matches pattern, where pattern is
// either a glob (`*`, `?` wildcards over a nick!user@host-shaped string
// or a bare hostname) or a CIDR literal (e.g. "203.0.113.0/24") matched
// against the IP address extracted from host.
func MaskMatches(pattern, host string) bool {
	if _, cidr, err := net.ParseCIDR(pattern); err == nil {
		ip := net.ParseIP(extractHost(host))
		if ip == nil {
			return false
		}
		return cidr.Contains(ip)
	}
	return globMatch(strings.ToLower(pattern), strings.ToLower(host))
}

// extractHost pulls the host portion out of a nick!user@host string, or
// returns the input unchanged if it isn't one.
func extractHost(s string) string {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// globMatch implements simple '*' / '?' glob matching, anchored at both ends.
func globMatch(pattern, s string) bool {
	return globMatchRec(pattern, s)
}

func globMatchRec(p, s string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			// collapse consecutive '*'
			for len(p) > 0 && p[0] == '*' {
				p = p[1:]
			}
			if len(p) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatchRec(p, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			p, s = p[1:], s[1:]
		default:
			if len(s) == 0 || p[0] != s[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}
