package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasic(t *testing.T) {
	m, err := Parse(":nick!user@host PRIVMSG #chan :hello there")
	require.NoError(t, err)
	assert.Equal(t, "nick!user@host", m.Prefix)
	assert.Equal(t, "PRIVMSG", m.Command)
	assert.Equal(t, []string{"#chan", "hello there"}, m.Params)
}

func TestParseTags(t *testing.T) {
	m, err := Parse("@time=2021-01-01T00:00:00Z;id=123 PRIVMSG #chan :hi")
	require.NoError(t, err)
	require.NotNil(t, m.Tags)
	assert.Equal(t, "2021-01-01T00:00:00Z", m.Tags["time"])
	assert.Equal(t, "123", m.Tags["id"])
}

func TestParseTagEscaping(t *testing.T) {
	m, err := Parse(`@note=a\sb\:c PRIVMSG #chan :hi`)
	require.NoError(t, err)
	assert.Equal(t, "a b;c", m.Tags["note"])
}

func TestParseNoTrailing(t *testing.T) {
	m, err := Parse("NICK alice")
	require.NoError(t, err)
	assert.Equal(t, "NICK", m.Command)
	assert.Equal(t, []string{"alice"}, m.Params)
}

func TestParseRejectsOverlongLine(t *testing.T) {
	long := make([]byte, MaxLineLength+10)
	for i := range long {
		long[i] = 'a'
	}
	_, err := Parse("PRIVMSG #c :" + string(long))
	assert.Error(t, err)
}

func TestParseRejectsEmbeddedCRLF(t *testing.T) {
	_, err := Parse("PRIVMSG #c :hi\r\nINJECTED")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		":irc.example.net 001 alice :Welcome",
		"PING :token",
		"@id=1;time=x :nick!u@h PRIVMSG #c :trailing with spaces",
		"NICK alice",
		"JOIN #chan,#other key1,key2",
	}
	for _, raw := range cases {
		m, err := Parse(raw)
		require.NoError(t, err)
		m2, err := Parse(m.String())
		require.NoError(t, err)
		assert.Equal(t, m.Command, m2.Command)
		assert.Equal(t, m.Prefix, m2.Prefix)
		assert.Equal(t, m.Params, m2.Params)
	}
}

func TestSerializeTagOrderDeterministic(t *testing.T) {
	m := &Message{Tags: map[string]string{"z": "1", "a": "2", "m": "3"}, Command: "PING"}
	assert.Equal(t, "@a=2;m=3;z=1 PING", m.String())
}

func TestValidNick(t *testing.T) {
	assert.True(t, ValidNick("alice"))
	assert.True(t, ValidNick("[alice]"))
	assert.False(t, ValidNick(""))
	assert.False(t, ValidNick("1alice"))
	assert.False(t, ValidNick("has space"))
}

func TestValidChannel(t *testing.T) {
	assert.True(t, ValidChannel("#general"))
	assert.False(t, ValidChannel("general"))
	assert.False(t, ValidChannel("#has space"))
}

func TestCasefold(t *testing.T) {
	assert.Equal(t, Casefold("Alice{}[]"), Casefold("alice[][]"))
}

func TestMaskMatchesGlob(t *testing.T) {
	assert.True(t, MaskMatches("*!*@*.example.com", "nick!user@host.example.com"))
	assert.False(t, MaskMatches("*!*@*.example.com", "nick!user@host.other.com"))
}

func TestMaskMatchesCIDR(t *testing.T) {
	assert.True(t, MaskMatches("203.0.113.0/24", "nick!user@203.0.113.42"))
	assert.False(t, MaskMatches("203.0.113.0/24", "nick!user@198.51.100.1"))
}

func TestCTCP(t *testing.T) {
	wrapped := WrapCTCP("VERSION", "")
	assert.True(t, IsCTCP(wrapped))
	payload, err := CTCPPayload(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "VERSION", payload)
}
