package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/wb-access/internal/access/domain"
)

func TestAggressive_ToKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://example.com/allowed/page.html", "example.com/allowed/page.html"},
		{"HTTP://WWW.Example.COM/Index.HTML", "example.com/index.html"},
		{"https://www2.example.com:443/", "example.com/"},
		{"http://example.com:80", "example.com/"},
		{"http://example.com:8080/x", "example.com:8080/x"},
		{"http://user:pw@example.com/p", "example.com/p"},
		{"example.com/p#frag", "example.com/p"},
		{"http://example.com/p;jsessionid=ABC123?a=1", "example.com/p?a=1"},
		{"http://example.com/p?a=1&PHPSESSID=zz&b=2", "example.com/p?a=1&b=2"},
		{"http://example.com/p?aspsessionidqq=1", "example.com/p"},
		{"http://example.com/p?", "example.com/p"},
		{"http://bücher.example/", "xn--bcher-kva.example/"},
		{"http://www.com/", "www.com/"},
		{"http://[2001:db8::1]:80/v6", "[2001:db8::1]/v6"},
		{"com,example)/allowed", "com,example)/allowed"},
		{"com,example,www)/", "com,example)/"},
		{"com,example,www2:8080)/x", "com,example:8080)/x"},
		{"com,example,www@bob)/", "com,example@bob)/"},
		{"com,www)/", "com,www)/"},
		{"com,example,wwwx)/", "com,example,wwwx)/"},
		{"com,example)/a#top", "com,example)/a"},
		{"192.168.1.10)/admin#x", "192.168.1.10)/admin"},
	}
	c := Aggressive{}
	for _, tt := range tests {
		got, err := c.ToKey(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, "Aggressive.ToKey(%q)", tt.in)
	}
	assert.False(t, c.SURTOrdered())
}

func TestAggressive_ToKeyMalformed(t *testing.T) {
	c := Aggressive{}
	for _, in := range []string{"", "  ", "http://", "http://example.com:bad/"} {
		_, err := c.ToKey(in)
		assert.ErrorIs(t, err, domain.ErrMalformedURL, in)
	}
}

func TestSURT_ToKey(t *testing.T) {
	c := SURT{}
	tests := []struct {
		in   string
		want string
	}{
		{"http://www.example.com/allowed/page.html", "com,example)/allowed/page.html"},
		{"example.com:8080/?q=1", "com,example:8080)/?q=1"},
		{"COM,Example)/Allowed", "com,example)/allowed"},
		{"com,example,www)/a#frag", "com,example)/a"},
	}
	for _, tt := range tests {
		got, err := c.ToKey(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	assert.True(t, c.SURTOrdered())

	_, err := c.ToKey("http://")
	assert.ErrorIs(t, err, domain.ErrMalformedURL)
}

func TestByName(t *testing.T) {
	c, err := ByName("aggressive")
	require.NoError(t, err)
	assert.IsType(t, Aggressive{}, c)

	c, err = ByName(" SURT ")
	require.NoError(t, err)
	assert.IsType(t, SURT{}, c)

	c, err = ByName("")
	require.NoError(t, err)
	assert.IsType(t, Aggressive{}, c)

	_, err = ByName("identity")
	assert.Error(t, err)
}

func TestStripSURTWWW(t *testing.T) {
	assert.Equal(t, "com,example)/", stripSURTWWW("com,example,www)/"))
	assert.Equal(t, "uk,co,example,sub)/", stripSURTWWW("uk,co,example,sub,www1)/"))
	assert.Equal(t, "uk,co,example,www,sub)/", stripSURTWWW("uk,co,example,www,sub)/"))
	assert.Equal(t, "[2001:db8::1])/", stripSURTWWW("[2001:db8::1])/"))
	assert.Equal(t, "nokey", stripSURTWWW("nokey"))
}

func TestStripSessionParams(t *testing.T) {
	assert.Equal(t, "", stripSessionParams(""))
	assert.Equal(t, "a=1", stripSessionParams("a=1&&sid=9"))
	assert.Equal(t, "x&y=2", stripSessionParams("x&cfid=1&cftoken=2&y=2"))
}
