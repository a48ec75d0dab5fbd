package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"go-phishguard/pkg/engine"
	"go-phishguard/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options HTTP 层所需的配置，启动时确定
type Options struct {
	Addr                string
	Version             string
	AllowedOrigins      []string
	AdminToken          string
	ExternalAPIsEnabled bool
	RiskThresholdHigh   int
	RiskThresholdMedium int
	TimeoutSeconds      int
}

type Server struct {
	engine *engine.Engine
	opts   Options
	http   *http.Server
}

func New(eng *engine.Engine, opts Options) *Server {
	s := &Server{engine: eng, opts: opts}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router 构建路由
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverer)
	r.Use(cors(s.opts.AllowedOrigins))

	r.Get("/", s.index)
	r.Get("/health", s.health)
	r.Get("/warning", s.warning)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.analyze)
		r.Post("/detect", s.detect)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly(s.opts.AdminToken))
			r.Get("/blacklist", s.listBlacklist)
			r.Post("/blacklist", s.addBlacklist)
			r.Post("/blacklist/reload", s.reloadBlacklist)
			r.Delete("/blacklist/{domain}", s.removeBlacklist)
		})
	})
	return r
}

// ListenAndServe 阻塞直到服务关闭
func (s *Server) ListenAndServe() error {
	logger.Log.Infof("HTTP服务监听: %s", s.opts.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestID 为每个请求分配ID并记录访问日志
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Log.Debugf("request_id=%s %s %s status=%d duration=%s",
			id, r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// recoverer 处理器 panic 时返回统一的 500 错误
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Log.Errorf("处理请求异常: %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// adminOnly 校验管理令牌（Authorization: Bearer 或 X-Admin-Token）。未配置令牌时管理接口关闭
func adminOnly(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				WriteError(w, http.StatusForbidden, "ADMIN_DISABLED", "admin API is disabled")
				return
			}
			got := r.Header.Get("X-Admin-Token")
			if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				got = bearer
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Log.Warnf("管理接口鉴权失败: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cors 通配时只返回 *，不携带凭据；显式列出的来源才回显并允许凭据
func cors(allowed []string) func(http.Handler) http.Handler {
	allowAll := len(allowed) == 0 || slices.Contains(allowed, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				h := w.Header()
				switch {
				case slices.Contains(allowed, origin):
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
					h.Add("Vary", "Origin")
				case allowAll:
					h.Set("Access-Control-Allow-Origin", "*")
				}
				if h.Get("Access-Control-Allow-Origin") != "" {
					h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token, X-Request-ID")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
