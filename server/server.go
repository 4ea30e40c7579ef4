package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/core/auth"
	"github.com/pbrusco/musicians-helper/core/session"
	"github.com/pbrusco/musicians-helper/logger"
)

// Server 本地 HTTP API
type Server struct {
	cfg     *config.Config
	manager *session.Manager
	issuer  *auth.Issuer
	hub     *TransportHub

	passHash string // 为空时不校验口令
	router   *mux.Router
}

// New 创建 API 服务并注册路由
func New(cfg *config.Config, manager *session.Manager) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		manager: manager,
		issuer:  auth.NewIssuer(cfg.JWTSecret, auth.DefaultTokenTTL),
		hub:     NewTransportHub(),
	}
	if cfg.APIPassphrase != "" {
		hash, err := auth.HashPassword(cfg.APIPassphrase)
		if err != nil {
			return nil, err
		}
		s.passHash = hash
	}
	s.router = s.routes()
	return s, nil
}

// Handler 返回路由
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/health", s.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/token", s.TokenHandler).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	// 项目
	api.HandleFunc("/projects", s.ListProjectsHandler).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.CreateProjectHandler).Methods(http.MethodPost)
	api.HandleFunc("/projects/recent", s.RecentProjectsHandler).Methods(http.MethodGet)
	api.HandleFunc("/projects/import", s.ImportProjectHandler).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", s.RenameProjectHandler).Methods(http.MethodPut)
	api.HandleFunc("/projects/{id}", s.DeleteProjectHandler).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/open", s.OpenProjectHandler).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/export", s.ExportProjectHandler).Methods(http.MethodGet)

	// 活动会话
	api.HandleFunc("/session", s.ViewHandler).Methods(http.MethodGet)
	api.HandleFunc("/session/layout", s.LayoutHandler).Methods(http.MethodGet)
	api.HandleFunc("/session/audio", s.UploadAudioHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/musicxml", s.ExportMusicXMLHandler).Methods(http.MethodGet)
	api.HandleFunc("/session/musicxml", s.ImportMusicXMLHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/midi", s.ExportMIDIHandler).Methods(http.MethodGet)

	api.HandleFunc("/session/play", s.TogglePlayHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/stop", s.StopHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/seek", s.SeekHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/region", s.PlayRegionHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/loop", s.LoopHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/params", s.ParamsHandler).Methods(http.MethodPatch)

	api.HandleFunc("/session/selection", s.SelectHandler).Methods(http.MethodPut)
	api.HandleFunc("/session/selection/play", s.PlaySelectionHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/selection/loop", s.LoopSelectionHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/selection/duplicate", s.DuplicateHandler).Methods(http.MethodPost)

	api.HandleFunc("/session/measures", s.InsertMeasureHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/measures/append", s.AddMeasuresHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/measures/{index:[0-9]+}", s.UpdateMeasureHandler).Methods(http.MethodPatch)
	api.HandleFunc("/session/measures/{index:[0-9]+}", s.DeleteMeasureHandler).Methods(http.MethodDelete)
	api.HandleFunc("/session/measures/{index:[0-9]+}/drag", s.DragHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/rubato/clear", s.ClearRubatoHandler).Methods(http.MethodPost)

	api.HandleFunc("/session/commit", s.CommitHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/undo", s.UndoHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/redo", s.RedoHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/transpose", s.TransposeHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/grid", s.GridHandler).Methods(http.MethodPatch)

	api.HandleFunc("/session/markers", s.AddMarkerHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/markers/{id}", s.UpdateMarkerHandler).Methods(http.MethodPatch)
	api.HandleFunc("/session/markers/{id}", s.RemoveMarkerHandler).Methods(http.MethodDelete)

	// 传输状态推送（浏览器无法设置 Authorization 头，令牌通过 ?token= 传入）
	router.HandleFunc("/ws/transport", s.authQuery(s.TransportWSHandler)).Methods(http.MethodGet)

	return router
}

// Run 启动服务并在 ctx 取消时优雅关闭
func (s *Server) Run(ctx context.Context) error {
	if err := ensureLoopback(s.cfg.ListenAddr); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go s.hub.Run()
	go s.hub.Follow(ctx, s.manager)
	defer s.hub.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("本地 API 已启动",
			logger.String("addr", s.cfg.ListenAddr),
			logger.Bool("auth", s.passHash != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("启动服务失败: %w", err)
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务关闭失败: %w", err)
	}
	logger.Info("服务已停止")
	return nil
}

// ensureLoopback 只允许监听回环地址
func ensureLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("无效的监听地址 %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("监听地址 %q 不是回环地址", addr)
	}
	return nil
}
