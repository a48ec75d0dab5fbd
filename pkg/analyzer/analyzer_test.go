package analyzer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go-phishguard/pkg/intel"
	"go-phishguard/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHosts map[string]*models.HostInfo

func (s stubHosts) Lookup(host string) *models.HostInfo { return s[host] }

type stubSource struct{ level models.RiskLevel }

func (s stubSource) Name() string { return "stub" }

func (s stubSource) CheckURL(ctx context.Context, rawURL string) (models.ThreatVerdict, error) {
	return models.ThreatVerdict{Source: "stub", IsThreat: true, RiskLevel: s.level}, nil
}

func newTestBlacklist(t *testing.T, domains ...string) *Blacklist {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blacklist.json")
	writeBlacklist(t, path, domains...)
	return NewBlacklist(path)
}

func TestAnalyzeInternalBlacklistHit(t *testing.T) {
	pa := NewPhishingAnalyzer(newTestBlacklist(t, "evil.com"), nil, nil)

	got := pa.AnalyzeInternal("https://login.EVIL.com/auth")
	assert.True(t, got.IsValidURL)
	assert.True(t, got.InBlacklist)
	assert.Equal(t, "evil.com", got.Domain)
	assert.Equal(t, "https://login.EVIL.com/auth", got.URL)
	assert.Nil(t, got.Host)
}

func TestAnalyzeInternalInvalidURL(t *testing.T) {
	pa := NewPhishingAnalyzer(newTestBlacklist(t, "evil.com"), nil, nil)

	got := pa.AnalyzeInternal("not a url")
	assert.False(t, got.IsValidURL)
	assert.False(t, got.InBlacklist)
}

func TestAnalyzeInternalHostLookupOnlyForIP(t *testing.T) {
	hosts := stubHosts{
		"203.0.113.7": {Country: "NL", ASN: 64500, ASNOrg: "Example Hosting"},
		"example.com": {Country: "US"},
	}
	pa := NewPhishingAnalyzer(newTestBlacklist(t), hosts, nil)

	got := pa.AnalyzeInternal("http://203.0.113.7/login")
	require.NotNil(t, got.Host)
	assert.Equal(t, "NL", got.Host.Country)

	got = pa.AnalyzeInternal("http://example.com/login")
	assert.Nil(t, got.Host)
}

func TestAnalyzeCollectsExternalVerdicts(t *testing.T) {
	o := intel.NewOrchestrator([]intel.Source{stubSource{level: models.RiskHigh}}, time.Second)
	pa := NewPhishingAnalyzer(newTestBlacklist(t), nil, o)

	internal, external := pa.Analyze(context.Background(), "https://example.com/login")
	assert.True(t, internal.IsValidURL)
	require.Len(t, external, 1)
	assert.Equal(t, models.RiskHigh, external[0].RiskLevel)
}

func TestAnalyzeWithoutSources(t *testing.T) {
	pa := NewPhishingAnalyzer(newTestBlacklist(t), nil, nil)
	_, external := pa.Analyze(context.Background(), "https://example.com")
	assert.Empty(t, external)
	assert.Equal(t, 0, pa.Orchestrator().Count())
}

func TestGeoHostLookupWithoutDatabases(t *testing.T) {
	l, err := OpenGeoHostLookup("", "")
	require.NoError(t, err)
	defer l.Close()
	assert.Nil(t, l.Lookup("8.8.8.8"))

	var nilLookup *GeoHostLookup
	assert.Nil(t, nilLookup.Lookup("8.8.8.8"))
}
