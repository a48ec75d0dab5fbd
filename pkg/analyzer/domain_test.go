package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeDomain(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		valid      bool
		ip         bool
		suspicious bool
		depth      int
		domain     string
		tld        string
	}{
		{"plain", "https://example.com/login", true, false, false, 1, "example.com", "com"},
		{"subdomains", "https://a.b.c.example.com", true, false, false, 4, "example.com", "com"},
		{"ipv4", "http://192.168.1.1/login", true, true, false, 3, "1.1", "1"},
		{"octet out of range", "http://999.1.1.1/", true, false, false, 3, "1.1", "1"},
		{"at sign", "http://user@evil.com/", true, false, true, 1, "evil.com", "com"},
		{"double hyphen", "http://pay--pal.com", true, false, true, 1, "pay--pal.com", "com"},
		{"long random", "http://abcdefghijklmnopqrstuvwxyz0123456789.com", true, false, true, 1,
			"abcdefghijklmnopqrstuvwxyz0123456789.com", "com"},
		{"uppercase host", "https://LOGIN.Example.COM", true, false, false, 2, "example.com", "com"},
		{"co.uk approximation", "https://sub.domain.co.uk", true, false, false, 3, "co.uk", "uk"},
		{"no scheme", "example.com/login", false, false, false, 0, "", ""},
		{"empty", "", false, false, false, 0, "", ""},
		{"whitespace", "http://exa mple.com", false, false, false, 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeDomain(tt.url)
			assert.Equal(t, tt.valid, got.IsValidURL)
			assert.Equal(t, tt.ip, got.IsIPLiteral)
			assert.Equal(t, tt.suspicious, got.HasSuspiciousPattern)
			assert.Equal(t, tt.depth, got.SubdomainDepth)
			assert.Equal(t, tt.domain, got.Domain)
			assert.Equal(t, tt.tld, got.TLD)
		})
	}
}

func TestIsIPAddress(t *testing.T) {
	assert.True(t, isIPAddress("0.0.0.0"))
	assert.True(t, isIPAddress("255.255.255.255"))
	assert.False(t, isIPAddress("256.1.1.1"))
	assert.False(t, isIPAddress("1.2.3"))
	// 未带方括号且含冒号的主机一律视为IPv6
	assert.True(t, isIPAddress("2001:db8::1"))
	assert.True(t, isIPAddress("host:8080"))
	assert.False(t, isIPAddress("[2001:db8::1]"))
	assert.False(t, isIPAddress("example.com"))
}

func TestIPv6URLIsLiteral(t *testing.T) {
	got := AnalyzeDomain("http://[2001:db8::1]/login")
	assert.True(t, got.IsValidURL)
	assert.True(t, got.IsIPLiteral)
	assert.Equal(t, "2001:db8::1", got.Hostname)
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomain("https://www.Example.com/path"))
	assert.Equal(t, "localhost", ExtractDomain("http://localhost:8080"))
	assert.Equal(t, "", ExtractDomain("::not a url"))
}
