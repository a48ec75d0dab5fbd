package server

import (
	"bytes"
	"html/template"
	"strings"

	"go-phishguard/pkg/models"
)

const pageStyle = `
	body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Arial, sans-serif; max-width: 760px; margin: 50px auto; padding: 20px; background: #f5f5f5; }
	.container { background: white; padding: 40px; border-radius: 10px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
	h1 { margin-top: 0; }
	h1.danger { color: #e74c3c; }
	.badge { display: inline-block; padding: 8px 16px; border-radius: 20px; font-weight: bold; background: #e74c3c; color: white; }
	.box { background: #ecf0f1; padding: 15px; border-radius: 5px; word-break: break-all; margin: 20px 0; }
	code { background: #34495e; color: #ecf0f1; padding: 2px 6px; border-radius: 3px; }
	ul { line-height: 1.8; }
	.footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #ecf0f1; color: #7f8c8d; font-size: 14px; }
`

var funcs = template.FuncMap{
	"upper": func(l models.RiskLevel) string { return strings.ToUpper(string(l)) },
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Credential Phishing Detection System</title>
<style>{{.Style}}</style>
</head>
<body>
<div class="container">
<h1>Credential Phishing Detection System</h1>
<p>Analyzes HTTP requests to detect and block credential phishing attempts.</p>
<div class="box">
<h3>API endpoints</h3>
<ul>
<li><code>POST /api/v1/analyze</code> analyze a request</li>
<li><code>POST /api/v1/detect</code> login indicators and verdict</li>
<li><code>GET /api/v1/blacklist</code> list blacklisted domains</li>
<li><code>GET /health</code> health check</li>
<li><code>GET /metrics</code> Prometheus metrics</li>
</ul>
</div>
<div class="footer">Version {{.Version}}</div>
</div>
</body>
</html>
`))

var warningTmpl = template.Must(template.New("warning").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Dangerous site blocked</title>
<style>{{.Style}}</style>
</head>
<body>
<div class="container">
<h1 class="danger">This site has been blocked</h1>
<p><span class="badge">Risk: {{upper .Level}}</span></p>
{{if .URL}}<div class="box"><strong>Blocked URL:</strong><br>{{.URL}}</div>{{end}}
{{if .Verdict}}
<h3>Reasons</h3>
<ul>
{{range .Verdict.Reasons}}<li>{{.}}</li>
{{end}}</ul>
{{if .Verdict.ExternalAPIResults}}
<h3>Threat intelligence results</h3>
<ul>
{{range .Verdict.ExternalAPIResults}}<li>{{if .IsThreat}}&#x1F6A8;{{else}}&#x2705;{{end}} {{.Source}}: {{.RiskLevel}}</li>
{{end}}</ul>
{{end}}
<h3>Details</h3>
<ul>
<li><strong>Risk score:</strong> {{.Verdict.Score}}/100</li>
<li><strong>Decision source:</strong> {{.Verdict.DecisionSource}}</li>
<li><strong>Action:</strong> {{.Verdict.Action}}</li>
</ul>
{{else}}
<p>The requested page was identified as a likely credential phishing site.</p>
{{end}}
<div class="footer">
<p>This site was blocked because it is suspected of credential phishing.</p>
<p>Credential Phishing Detection System v{{.Version}}</p>
</div>
</div>
</body>
</html>
`))

type indexPage struct {
	Style   template.CSS
	Version string
}

type warningPage struct {
	Style   template.CSS
	Version string
	URL     string
	Level   models.RiskLevel
	Verdict *models.AnalysisVerdict
}

func renderIndex(version string) ([]byte, error) {
	var buf bytes.Buffer
	err := indexTmpl.Execute(&buf, indexPage{Style: template.CSS(pageStyle), Version: version})
	return buf.Bytes(), err
}

// renderWarning verdict 为 nil 时渲染通用警告页
func renderWarning(version, rawURL string, level models.RiskLevel, verdict *models.AnalysisVerdict) ([]byte, error) {
	var buf bytes.Buffer
	err := warningTmpl.Execute(&buf, warningPage{
		Style:   template.CSS(pageStyle),
		Version: version,
		URL:     rawURL,
		Level:   level,
		Verdict: verdict,
	})
	return buf.Bytes(), err
}
