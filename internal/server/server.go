// Package server exposes the intelligence pipeline and the local dashboard
// over HTTP, with session-cookie auth backed by the store.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/aozorabiz/kaisha-intel/internal/config"
	"github.com/aozorabiz/kaisha-intel/internal/fetcher"
	"github.com/aozorabiz/kaisha-intel/internal/intel"
	"github.com/aozorabiz/kaisha-intel/internal/localinfo"
	"github.com/aozorabiz/kaisha-intel/internal/model"
	"github.com/aozorabiz/kaisha-intel/internal/store"
	"github.com/aozorabiz/kaisha-intel/pkg/anthropic"
)

// PipelineRunner is the slice of the intel pipeline the handlers need.
type PipelineRunner interface {
	Run(ctx context.Context, req model.IntelRequest) (*intel.Response, error)
}

// LocalInfoProvider serves the dashboard payload.
type LocalInfoProvider interface {
	Get(ctx context.Context, userID, companyID string, area model.Area, refresh bool) (*localinfo.Result, error)
}

// Server holds the handler dependencies.
type Server struct {
	store    store.Store
	pipeline PipelineRunner
	local    LocalInfoProvider
	cfg      config.ServerConfig
}

// New creates a Server.
func New(st store.Store, pipeline PipelineRunner, local LocalInfoProvider, cfg config.ServerConfig) *Server {
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "kaisha_session"
	}
	return &Server{store: st, pipeline: pipeline, local: local, cfg: cfg}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/api/company-intel", s.handleCompanyIntel)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/api/dashboard/local-info", s.handleLocalInfo)
		r.Post("/api/settings/company-refetch", s.handleCompanyRefetch)
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCompanyIntel(w http.ResponseWriter, r *http.Request) {
	var req model.IntelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの形式が不正です")
		return
	}

	resp, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		s.writeIntelError(w, resp, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeIntelError maps pipeline failures onto the API's Japanese error
// surface. resp may carry diagnostic meta even on failure.
func (s *Server) writeIntelError(w http.ResponseWriter, resp *intel.Response, err error) {
	var reason *fetcher.FailureReason
	switch {
	case errors.Is(err, intel.ErrMissingWebsite):
		writeError(w, http.StatusBadRequest, "websiteは必須です")
	case errors.As(err, &reason):
		body := map[string]any{
			"error":   "Webサイトの情報を取得できませんでした",
			"details": reason.Details,
		}
		if resp != nil && resp.Meta != nil {
			body["meta"] = resp.Meta
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case anthropic.IsQuotaExceeded(err):
		writeError(w, http.StatusTooManyRequests, "AIの利用上限に達しました。しばらくしてから再度お試しください。")
	case errors.Is(err, intel.ErrLLMParse):
		writeError(w, http.StatusInternalServerError, "AIレスポンスの解析に失敗しました")
	default:
		zap.L().Error("company intel failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "会社情報の取得に失敗しました")
	}
}

func (s *Server) handleLocalInfo(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	company, err := s.store.GetCompanyForUser(r.Context(), userID)
	if err != nil {
		zap.L().Error("company lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "地域情報の取得に失敗しました")
		return
	}
	if company == nil {
		writeError(w, http.StatusNotFound, "会社情報が見つかりません")
		return
	}

	area := model.Area{
		Prefecture: company.Prefecture,
		City:       company.City,
		Industry:   company.Industry,
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	result, err := s.local.Get(r.Context(), userID, company.ID, area, refresh)
	if err != nil {
		zap.L().Error("local info failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "地域情報の取得に失敗しました")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCompanyRefetch(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	company, err := s.store.GetCompanyForUser(r.Context(), userID)
	if err != nil {
		zap.L().Error("company lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "会社情報の取得に失敗しました")
		return
	}
	if company == nil {
		writeError(w, http.StatusNotFound, "会社情報が見つかりません")
		return
	}
	if company.Website == "" {
		writeError(w, http.StatusBadRequest,
			"ウェブサイトが登録されていません。会社情報にURLを入力してから再取得してください。")
		return
	}

	resp, err := s.pipeline.Run(r.Context(), model.IntelRequest{
		Website:             company.Website,
		CompanyName:         company.Name,
		CompanyPrefecture:   company.Prefecture,
		CompanyCity:         company.City,
		CompanyAddress:      company.Address,
		ForceExternalSearch: true,
	})
	if err != nil {
		s.writeIntelError(w, resp, err)
		return
	}

	if err := s.store.UpdateCompanyIntel(r.Context(), company.ID, resp.Data); err != nil {
		zap.L().Error("company update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "会社情報の更新に失敗しました")
		return
	}

	// Stale dashboard rows rebuild on the next view; a failed delete is
	// logged only.
	if err := s.store.DeleteDashboardCache(r.Context(), userID, company.ID); err != nil {
		zap.L().Warn("dashboard cache delete failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// requireSession resolves the session cookie to a user ID and stores it in
// the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.cfg.SessionCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "認証されていません")
			return
		}

		userID, err := s.store.GetSessionUser(r.Context(), cookie.Value)
		if err != nil {
			zap.L().Error("session lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "認証に失敗しました")
			return
		}
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "認証されていません")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

type ctxKey int

const userIDKey ctxKey = 0

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestLogger logs one line per request via the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
