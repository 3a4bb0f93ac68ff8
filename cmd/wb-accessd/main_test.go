package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/wb-access/internal/access/config"
	"github.com/haukened/wb-access/internal/access/domain"
	"github.com/haukened/wb-access/internal/access/gateways/canon"
)

type stubFactory struct {
	flt    domain.RecordFilter
	builds int
}

func (s *stubFactory) BuildFilter() (domain.RecordFilter, bool) {
	s.builds++
	if s.flt == nil {
		return nil, false
	}
	return s.flt, true
}
func (s *stubFactory) Initialize() error { return nil }
func (s *stubFactory) Shutdown() error   { return nil }

type prefixFilter struct{ prefix string }

func (p prefixFilter) Decide(rec domain.Record) domain.Verdict {
	if strings.HasPrefix(rec.URLKey(), p.prefix) {
		return domain.Include
	}
	return domain.Exclude
}
func (prefixFilter) SetGroup(domain.FilterGroup) {}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		whitelistFlag, canonFlag = "", ""
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeWhitelist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whitelist.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecideLines(t *testing.T) {
	in := strings.NewReader("http://www.example.com/allowed/x\n\n  http://example.org/  \nhttp://\n")
	var out bytes.Buffer
	n, err := decideLines(in, &out, prefixFilter{prefix: "example.com/allowed"}, canon.Aggressive{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t,
		"INCLUDE\thttp://www.example.com/allowed/x\n"+
			"EXCLUDE\thttp://example.org/\n"+
			"EXCLUDE\thttp://\n",
		out.String())
}

func TestLazyFilter(t *testing.T) {
	f := &stubFactory{}
	lf := &lazyFilter{factory: f}
	assert.Equal(t, domain.Exclude, lf.Decide(domain.Capture{Key: "example.com/"}))
	assert.Equal(t, 1, f.builds)

	f.flt = prefixFilter{prefix: "example.com"}
	assert.Equal(t, domain.Include, lf.Decide(domain.Capture{Key: "example.com/"}))
	assert.Equal(t, domain.Include, lf.Decide(domain.Capture{Key: "example.com/x"}))
	assert.Equal(t, 2, f.builds, "filter is built once and reused")
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"www.example.co.uk/a", "example.co.uk", true},
		{"com,example,www:8080@bob)/a", "example.com", true},
		{"uk,co,example)/", "example.co.uk", true},
		{"192.168.1.10)/admin", "", false},
		{"[2001:db8::1])/", "", false},
		{"http:///nohost", "", false},
	}
	for _, tt := range tests {
		got, err := registrableDomain(tt.key)
		if tt.ok {
			require.NoError(t, err, tt.key)
			assert.Equal(t, tt.want, got, tt.key)
		} else {
			assert.Error(t, err, tt.key)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wb-accessd version "+version)
}

func TestTermsCmd(t *testing.T) {
	out, err := runRoot(t, "terms", "http://www.example.co.uk/a/b?x=1")
	require.NoError(t, err)
	assert.Contains(t, out, "key: example.co.uk/a/b?x=1")
	assert.Contains(t, out, "surt: uk,co,example)/a/b?x=1\n")
	assert.Contains(t, out, "registrable domain: example.co.uk")
	assert.Contains(t, out, " 1 uk,co,example)/a/b?x=1\n")
	assert.Contains(t, out, "uk,co,example)/\n")
	assert.NotContains(t, out, " uk\n")
}

func TestTermsCmd_SURTCanonicalizer(t *testing.T) {
	out, err := runRoot(t, "terms", "--canonicalizer", "surt", "http://example.com/a")
	require.NoError(t, err)
	assert.Contains(t, out, "key: com,example)/a")
	assert.Contains(t, out, " 2 com,example)/\n")
}

func TestTermsCmd_Malformed(t *testing.T) {
	_, err := runRoot(t, "terms", "http://")
	assert.ErrorIs(t, err, domain.ErrMalformedURL)
}

func TestCheckCmd(t *testing.T) {
	path := writeWhitelist(t, "com,example)/allowed\nexample.net\n")
	t.Setenv("WBA_LOG_LEVEL", "error")

	out, err := runRoot(t, "check", "--whitelist", path,
		"http://example.com/allowed/page.html",
		"http://example.org/other",
		"http://cdn.example.net/img.png",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "2 entries")
	assert.Contains(t, out, "INCLUDE\thttp://example.com/allowed/page.html\n")
	assert.Contains(t, out, "EXCLUDE\thttp://example.org/other\n")
	assert.Contains(t, out, "INCLUDE\thttp://cdn.example.net/img.png\n")
}

func TestCheckCmd_MissingWhitelist(t *testing.T) {
	t.Setenv("WBA_LOG_LEVEL", "error")
	_, err := runRoot(t, "check", "--whitelist", filepath.Join(t.TempDir(), "none.txt"), "http://example.com/")
	assert.ErrorContains(t, err, "no whitelist loaded")
}

func TestServeCmd_Stdin(t *testing.T) {
	path := writeWhitelist(t, "example.com/allowed/\n")
	t.Setenv("WBA_LOG_LEVEL", "error")
	t.Setenv("WBA_WHITELIST_FILE", path)

	rootCmd.SetIn(strings.NewReader("http://example.com/allowed/a\nhttp://example.com/private\n"))
	defer rootCmd.SetIn(nil)

	out, err := runRoot(t, "serve")
	require.NoError(t, err)
	assert.Equal(t, "INCLUDE\thttp://example.com/allowed/a\nEXCLUDE\thttp://example.com/private\n", out)
}

func TestBuildApplication_WithSnapshotDB(t *testing.T) {
	dir := t.TempDir()
	path := writeWhitelist(t, "example.com\n")
	cfg := config.DEFAULT_APP_CONFIG
	cfg.WhitelistFile = path
	cfg.SnapshotDB = filepath.Join(dir, "wl.db")
	cfg.Canonicalizer = "surt"

	app, err := buildApplication(&cfg)
	require.NoError(t, err)
	require.NoError(t, app.factory.Initialize())
	flt, ok := app.factory.BuildFilter()
	require.True(t, ok)
	assert.Equal(t, domain.Include, decide(flt, app.canon, "http://www.example.com/x"))
	app.Close()

	// a fresh process with the file gone still starts from the persisted copy
	require.NoError(t, os.Remove(path))
	app, err = buildApplication(&cfg)
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.manager.Current())
	assert.True(t, app.manager.Current().Contains("com,example)/"))
}

func TestBuildApplication_BadCanonicalizer(t *testing.T) {
	cfg := config.DEFAULT_APP_CONFIG
	cfg.Canonicalizer = "identity"
	_, err := buildApplication(&cfg)
	assert.Error(t, err)
}
