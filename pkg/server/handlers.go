package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go-phishguard/pkg/analyzer"
	"go-phishguard/pkg/detector"
	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/models"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type notLoginResponse struct {
	IsLoginAttempt bool          `json:"is_login_attempt"`
	Action         models.Action `json:"action"`
	Message        string        `json:"message"`
}

type detectResponse struct {
	Indicators models.LoginIndicators  `json:"indicators"`
	Verdict    *models.AnalysisVerdict `json:"verdict"`
}

type healthResponse struct {
	Status              string         `json:"status"`
	Version             string         `json:"version"`
	ExternalAPIsEnabled bool           `json:"external_apis_enabled"`
	ActiveAPIs          []string       `json:"active_apis"`
	ActiveAPICount      int            `json:"active_api_count"`
	BlacklistCount      int            `json:"blacklist_count"`
	Settings            healthSettings `json:"settings"`
}

type healthSettings struct {
	RiskThresholdHigh   int `json:"risk_threshold_high"`
	RiskThresholdMedium int `json:"risk_threshold_medium"`
	AnalysisTimeout     int `json:"analysis_timeout"`
}

type blacklistResponse struct {
	Domains     []string `json:"domains"`
	Count       int      `json:"count"`
	Description string   `json:"description"`
}

type domainRequest struct {
	Domain string `json:"domain"`
}

// decodeRequest 解析并校验分析请求
func decodeRequest(w http.ResponseWriter, r *http.Request) (models.AnalysisRequest, bool) {
	var req models.AnalysisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return req, false
	}
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Method) == "" {
		WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "url and method are required")
		return req, false
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	return req, true
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	logger.Log.Infof("收到分析请求: %s %s", req.Method, req.URL)

	verdict, err := s.engine.Analyze(r.Context(), req)
	if err != nil {
		logger.Log.Errorf("分析失败: %v", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
		return
	}

	if !verdict.IsLoginAttempt {
		WriteJSON(w, http.StatusOK, notLoginResponse{
			IsLoginAttempt: false,
			Action:         models.ActionAllowed,
			Message:        "Not a login attempt",
		})
		return
	}

	if verdict.Action == models.ActionBlocked {
		page, err := renderWarning(s.opts.Version, req.URL, verdict.RiskLevel, verdict)
		if err != nil {
			logger.Log.Errorf("渲染警告页失败: %v", err)
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
			return
		}
		writeHTML(w, http.StatusForbidden, page)
		return
	}

	WriteJSON(w, http.StatusOK, verdict)
}

func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	verdict, err := s.engine.Preview(r.Context(), req)
	if err != nil {
		logger.Log.Errorf("分析失败: %v", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, detectResponse{
		Indicators: detector.Details(req),
		Verdict:    verdict,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	WriteJSON(w, http.StatusOK, healthResponse{
		Status:              "healthy",
		Version:             s.opts.Version,
		ExternalAPIsEnabled: s.opts.ExternalAPIsEnabled,
		ActiveAPIs:          st.ActiveSources,
		ActiveAPICount:      len(st.ActiveSources),
		BlacklistCount:      st.BlacklistCount,
		Settings: healthSettings{
			RiskThresholdHigh:   s.opts.RiskThresholdHigh,
			RiskThresholdMedium: s.opts.RiskThresholdMedium,
			AnalysisTimeout:     s.opts.TimeoutSeconds,
		},
	})
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	page, err := renderIndex(s.opts.Version)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
		return
	}
	writeHTML(w, http.StatusOK, page)
}

func (s *Server) warning(w http.ResponseWriter, r *http.Request) {
	level := models.RiskLevel(strings.ToLower(r.URL.Query().Get("risk")))
	if level.Weight() == 0 {
		level = models.RiskHigh
	}
	page, err := renderWarning(s.opts.Version, "", level, nil)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
		return
	}
	writeHTML(w, http.StatusOK, page)
}

func (s *Server) listBlacklist(w http.ResponseWriter, r *http.Request) {
	bl := s.engine.Analyzer().Blacklist()
	domains := bl.List()
	WriteJSON(w, http.StatusOK, blacklistResponse{
		Domains:     domains,
		Count:       len(domains),
		Description: bl.Description(),
	})
}

func (s *Server) addBlacklist(w http.ResponseWriter, r *http.Request) {
	var body domainRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil ||
		strings.TrimSpace(body.Domain) == "" {
		WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "domain is required")
		return
	}

	domain := strings.ToLower(strings.TrimSpace(body.Domain))
	switch err := s.engine.Analyzer().Blacklist().Insert(domain); {
	case errors.Is(err, analyzer.ErrDomainExists):
		WriteError(w, http.StatusConflict, "ALREADY_EXISTS", "domain already blacklisted")
	case err != nil:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to update blacklist")
	default:
		WriteJSON(w, http.StatusCreated, domainRequest{Domain: domain})
	}
}

func (s *Server) removeBlacklist(w http.ResponseWriter, r *http.Request) {
	domain := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "domain")))
	switch err := s.engine.Analyzer().Blacklist().Delete(domain); {
	case errors.Is(err, analyzer.ErrDomainNotFound), errors.Is(err, analyzer.ErrEmptyDomain):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "domain not blacklisted")
	case err != nil:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to update blacklist")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) reloadBlacklist(w http.ResponseWriter, r *http.Request) {
	bl := s.engine.Analyzer().Blacklist()
	if err := bl.Reload(); err != nil {
		logger.Log.Errorf("重新加载黑名单失败: %v", err)
		WriteError(w, http.StatusInternalServerError, "RELOAD_FAILED", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"count": bl.Count()})
}
