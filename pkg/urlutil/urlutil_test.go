package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasic(t *testing.T) {
	u, err := Parse("http://example.com/path?q=1")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "example.com", u.Host)
	assert.Equal(t, 80, u.Port)
	assert.Equal(t, "/path", u.Path)
	assert.Equal(t, "q=1", u.Query)
	assert.True(t, u.HasQuery())
}

func TestParseFoldsWebSocketSchemes(t *testing.T) {
	u, err := Parse("ws://example.com:8080/chat")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, 8080, u.Port)

	u, err = Parse("wss://example.com/chat")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, 443, u.Port)
}

func TestParseDefaultPath(t *testing.T) {
	u, err := Parse("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "/", u.Path)
	assert.False(t, u.HasQuery())
}

func TestParseRejectsUnsupportedScheme(t *testing.T) {
	_, err := Parse("ftp://example.com/")
	assert.Error(t, err)
}

func TestParseIPv6Literal(t *testing.T) {
	u, err := Parse("http://[::1]:9000/")
	require.NoError(t, err)
	assert.Equal(t, "::1", u.Host)
	assert.Equal(t, 9000, u.Port)
}

func TestHostHeaderOmitsDefaultPort(t *testing.T) {
	u, err := Parse("http://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "example.com", u.HostHeader())

	u, err = Parse("http://example.com:8080/")
	require.NoError(t, err)
	assert.Equal(t, "example.com:8080", u.HostHeader())
}

func TestRequestPathIncludesQuery(t *testing.T) {
	u, err := Parse("http://example.com/a/b?x=1&y=2")
	require.NoError(t, err)
	assert.Equal(t, "/a/b?x=1&y=2", u.RequestPath())
}

func TestEncodeLeavesUnreservedBytesAlone(t *testing.T) {
	assert.Equal(t, "abc-._~123", Encode("abc-._~123"))
}

func TestEncodePercentEncodesOthers(t *testing.T) {
	assert.Equal(t, "%20hello%2Fworld", Encode(" hello/world"))
}

func TestValidateRejectsLoopbackHostname(t *testing.T) {
	u, err := Parse("http://localhost/")
	require.NoError(t, err)
	assert.Error(t, Validate(u, false))
	assert.NoError(t, Validate(u, true))
}

func TestValidateRejectsDottedQuadLoopback(t *testing.T) {
	u, err := Parse("http://127.0.0.1/")
	require.NoError(t, err)
	assert.Error(t, Validate(u, false))
}

func TestValidateRejectsHexIPv4Literal(t *testing.T) {
	u, err := Parse("http://0x7f000001/")
	require.NoError(t, err)
	assert.Error(t, Validate(u, false))
}

func TestValidateRejectsOctalIPv4Literal(t *testing.T) {
	u, err := Parse("http://017700000001/")
	require.NoError(t, err)
	assert.Error(t, Validate(u, false))
}

func TestValidateRejectsSingleIntegerIPv4Literal(t *testing.T) {
	u, err := Parse("http://2130706433/")
	require.NoError(t, err)
	assert.Error(t, Validate(u, false))
}

func TestValidateRejectsShorthandDottedForm(t *testing.T) {
	u, err := Parse("http://127.1/")
	require.NoError(t, err)
	assert.Error(t, Validate(u, false))
}

func TestValidateRejectsRFC1918(t *testing.T) {
	for _, host := range []string{"10.0.0.5", "172.16.0.5", "192.168.1.5"} {
		u, err := Parse("http://" + host + "/")
		require.NoError(t, err)
		assert.Error(t, Validate(u, false), host)
	}
}

func TestValidateRejectsLinkLocal(t *testing.T) {
	u, err := Parse("http://169.254.1.1/")
	require.NoError(t, err)
	assert.Error(t, Validate(u, false))
}

func TestValidateRejectsBroadcast(t *testing.T) {
	u, err := Parse("http://255.255.255.255/")
	require.NoError(t, err)
	assert.Error(t, Validate(u, false))
}

func TestValidateAllowsPublicHost(t *testing.T) {
	u, err := Parse("http://93.184.216.34/")
	require.NoError(t, err)
	assert.NoError(t, Validate(u, false))
}

func TestValidateRejectsIPv6Loopback(t *testing.T) {
	u, err := Parse("http://[::1]/")
	require.NoError(t, err)
	assert.Error(t, Validate(u, false))
}
