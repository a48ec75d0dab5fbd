package detector

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go-phishguard/pkg/models"
)

// 凭据字段：密码类与身份类都出现才算
var (
	passwordPattern = regexp.MustCompile(`(?i)password|passwd|pwd`)
	identityPattern = regexp.MustCompile(`(?i)username|user|email|login|id`)
)

// 认证相关路径
var authEndpoints = []string{
	"/login",
	"/signin",
	"/sign-in",
	"/auth",
	"/authenticate",
	"/session",
	"/oauth",
	"/sso",
}

// minIndicators 判定为登录请求所需的最少指标数
const minIndicators = 2

// Detect 判断请求是否为登录尝试：四个指标中至少满足两个
func Detect(req models.AnalysisRequest) bool {
	return Details(req).IsLoginAttempt
}

// Details 返回每个指标的结果，供排查使用
func Details(req models.AnalysisRequest) models.LoginIndicators {
	ind := models.LoginIndicators{
		IsPost:         isPostMethod(req),
		HasCredentials: hasCredentialFields(req),
		IsAuthEndpoint: isAuthEndpoint(req),
		HasAuthHeader:  hasAuthHeader(req),
	}

	count := 0
	for _, hit := range []bool{ind.IsPost, ind.HasCredentials, ind.IsAuthEndpoint, ind.HasAuthHeader} {
		if hit {
			count++
		}
	}
	ind.IsLoginAttempt = count >= minIndicators
	return ind
}

func isPostMethod(req models.AnalysisRequest) bool {
	return strings.EqualFold(strings.TrimSpace(req.Method), "POST")
}

func hasCredentialFields(req models.AnalysisRequest) bool {
	if len(req.Body) == 0 {
		return false
	}
	body := strings.ToLower(serializeBody(req.Body))
	return passwordPattern.MatchString(body) && identityPattern.MatchString(body)
}

// serializeBody 把请求体转成文本，键和值都参与匹配
func serializeBody(body map[string]any) string {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprint(body)
	}
	return string(data)
}

func isAuthEndpoint(req models.AnalysisRequest) bool {
	path := req.URL
	if u, err := url.Parse(req.URL); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, endpoint := range authEndpoints {
		if strings.Contains(path, endpoint) {
			return true
		}
	}
	return false
}

func hasAuthHeader(req models.AnalysisRequest) bool {
	_, ok := req.Header("Authorization")
	return ok
}
