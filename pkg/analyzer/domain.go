package analyzer

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go-phishguard/pkg/models"
)

// 可疑URL特征：@ 符号、连续连字符、30位以上的随机串
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`@`),
	regexp.MustCompile(`-{2,}`),
	regexp.MustCompile(`(?i)[a-z0-9]{30,}`),
}

var ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// AnalyzeDomain 分析URL的域名特征。输入格式错误时返回全零记录，不会报错
func AnalyzeDomain(rawURL string) models.DomainAnalysis {
	var result models.DomainAnalysis

	u, ok := parseURL(rawURL)
	if !ok {
		return result
	}
	result.IsValidURL = true

	hostname := strings.ToLower(u.Hostname())
	result.Hostname = hostname
	result.IsIPLiteral = isIPAddress(hostname)
	result.SubdomainDepth = strings.Count(hostname, ".")
	result.HasSuspiciousPattern = hasSuspiciousPattern(rawURL)
	result.Domain, result.TLD = splitDomain(hostname)

	return result
}

// ExtractDomain 返回URL的注册域（最后两段），不足两段时返回主机名
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	hostname := strings.ToLower(u.Hostname())
	if domain, _ := splitDomain(hostname); domain != "" {
		return domain
	}
	return hostname
}

// parseURL 要求同时具备 scheme 和 host
func parseURL(rawURL string) (*url.URL, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.ContainsAny(rawURL, " \t\r\n") {
		return nil, false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

// splitDomain 两段启发式：不识别公共后缀，如 sub.domain.co.uk 得到 co.uk
func splitDomain(hostname string) (domain, tld string) {
	parts := strings.Split(hostname, ".")
	if len(parts) < 2 {
		return "", ""
	}
	return strings.Join(parts[len(parts)-2:], "."), parts[len(parts)-1]
}

func isIPAddress(hostname string) bool {
	if ipv4Pattern.MatchString(hostname) {
		for _, octet := range strings.Split(hostname, ".") {
			n, err := strconv.Atoi(octet)
			if err != nil || n < 0 || n > 255 {
				return false
			}
		}
		return true
	}

	// IPv6 粗略判断：含冒号且未带方括号
	return strings.Contains(hostname, ":") && !strings.HasPrefix(hostname, "[")
}

func hasSuspiciousPattern(rawURL string) bool {
	for _, p := range suspiciousPatterns {
		if p.MatchString(rawURL) {
			return true
		}
	}
	return false
}
