// Package wire implements the IRC message codec: parsing and serializing
// RFC 1459 wire lines with IRCv3 message-tags, plus the validators used at
// the protocol boundary (nicknames, channels, usernames, masks).
package wire

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	// MaxLineLength is the wire limit excluding any @tags prefix.
	MaxLineLength = 512
	// MaxTagLength is the IRCv3 message-tags limit, including the
	// leading '@' and trailing space.
	MaxTagLength = 8191
	// MaxParams is the maximum number of middle parameters (trailing
	// parameter is not counted against this).
	MaxParams = 14
)

// ParseError is returned by Parse for malformed input.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "wire: parse error: " + e.Reason }

// Message is a single decoded IRC line.
type Message struct {
	Tags    map[string]string // nil if no tags were present
	Prefix  string            // servername or nick!user@host, without leading ':'
	Command string            // verb or 3-digit numeric, upper-cased
	Params  []string          // middle params followed by the trailing param, if any
}

// Parse decodes a single CR-LF-terminated (or bare LF-terminated) wire line.
// The terminator itself must already be stripped by the caller's line
// reader; Parse rejects embedded CR or LF.
func Parse(line string) (*Message, error) {
	if len(line) == 0 {
		return nil, &ParseError{Reason: "empty line"}
	}
	if strings.ContainsAny(line, "\r\n") {
		return nil, &ParseError{Reason: "embedded CR/LF"}
	}

	rest := line
	var tags map[string]string
	if strings.HasPrefix(rest, "@") {
		sp := strings.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, &ParseError{Reason: "tags with no command"}
		}
		if sp+1 > MaxTagLength {
			return nil, &ParseError{Reason: "tags exceed 8191 bytes"}
		}
		tagBlob := rest[1:sp]
		rest = strings.TrimLeft(rest[sp+1:], " ")
		var err error
		tags, err = parseTags(tagBlob)
		if err != nil {
			return nil, err
		}
	}

	if len(rest) > MaxLineLength {
		return nil, &ParseError{Reason: "line exceeds 512 bytes"}
	}

	m := &Message{Tags: tags}

	if strings.HasPrefix(rest, ":") {
		sp := strings.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, &ParseError{Reason: "prefix with no command"}
		}
		m.Prefix = rest[1:sp]
		rest = strings.TrimLeft(rest[sp+1:], " ")
	}

	if rest == "" {
		return nil, &ParseError{Reason: "missing command"}
	}

	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		m.Command = strings.ToUpper(rest)
		return m, nil
	}
	m.Command = strings.ToUpper(rest[:sp])
	rest = strings.TrimLeft(rest[sp+1:], " ")

	for rest != "" {
		if strings.HasPrefix(rest, ":") {
			m.Params = append(m.Params, rest[1:])
			break
		}
		sp := strings.IndexByte(rest, ' ')
		if sp < 0 {
			m.Params = append(m.Params, rest)
			break
		}
		if len(m.Params) == MaxParams {
			// everything remaining becomes the trailing-equivalent
			// final middle parameter; IRC allows at most 14 middles.
			m.Params = append(m.Params, rest)
			break
		}
		m.Params = append(m.Params, rest[:sp])
		rest = strings.TrimLeft(rest[sp+1:], " ")
	}

	return m, nil
}

func parseTags(blob string) (map[string]string, error) {
	if blob == "" {
		return nil, &ParseError{Reason: "empty tags block"}
	}
	tags := make(map[string]string)
	for _, pair := range strings.Split(blob, ";") {
		if pair == "" {
			continue
		}
		key, val, hasVal := strings.Cut(pair, "=")
		if key == "" {
			return nil, &ParseError{Reason: "empty tag key"}
		}
		if hasVal {
			tags[key] = unescapeTagValue(val)
		} else {
			tags[key] = ""
		}
	}
	return tags, nil
}

var tagUnescaper = strings.NewReplacer(
	"\\:", ";",
	"\\s", " ",
	"\\\\", "\\",
	"\\r", "\r",
	"\\n", "\n",
)

func unescapeTagValue(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	return tagUnescaper.Replace(v)
}

var tagEscaper = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\:",
	" ", "\\s",
	"\r", "\\r",
	"\n", "\\n",
)

func escapeTagValue(v string) string { return tagEscaper.Replace(v) }

// String serializes the message back to wire form, without the trailing
// CR-LF. Tags are emitted in deterministic lexicographic key order.
func (m *Message) String() string {
	var b strings.Builder

	if len(m.Tags) > 0 {
		keys := make([]string, 0, len(m.Tags))
		for k := range m.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('@')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(k)
			if v := m.Tags[k]; v != "" {
				b.WriteByte('=')
				b.WriteString(escapeTagValue(v))
			}
		}
		b.WriteByte(' ')
	}

	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}

	b.WriteString(m.Command)

	for i, p := range m.Params {
		b.WriteByte(' ')
		last := i == len(m.Params)-1
		if last && (p == "" || strings.ContainsAny(p, " :") ) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}

	return b.String()
}

// Bytes returns the CR-LF terminated wire representation.
func (m *Message) Bytes() []byte {
	return []byte(m.String() + "\r\n")
}

// IsCTCP reports whether a PRIVMSG/NOTICE trailing parameter is a
// CTCP-framed payload (wrapped in \x01).
func IsCTCP(trailing string) bool {
	return len(trailing) >= 2 && trailing[0] == '\x01' && trailing[len(trailing)-1] == '\x01'
}

// CTCPPayload strips the \x01 framing, returning the inner CTCP command
// and argument string.
func CTCPPayload(trailing string) (string, error) {
	if !IsCTCP(trailing) {
		return "", errors.New("wire: not a CTCP-framed message")
	}
	return trailing[1 : len(trailing)-1], nil
}

// WrapCTCP frames a CTCP command for PRIVMSG/NOTICE delivery.
func WrapCTCP(cmd, arg string) string {
	if arg == "" {
		return fmt.Sprintf("\x01%s\x01", cmd)
	}
	return fmt.Sprintf("\x01%s %s\x01", cmd, arg)
}
