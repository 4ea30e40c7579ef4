package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pbrusco/musicians-helper/core/auth"
	"github.com/pbrusco/musicians-helper/logger"
)

type contextKey string

const clientKey contextKey = "client"

// TokenRequest 令牌请求
type TokenRequest struct {
	Passphrase string `json:"passphrase"`
	Client     string `json:"client"`
}

// TokenHandler 校验口令并签发令牌
func (s *Server) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if s.passHash != "" && !auth.CheckPasswordHash(req.Passphrase, s.passHash) {
		logger.Warn("[Auth] 口令校验失败", logger.String("client", req.Client))
		http.Error(w, "Invalid passphrase", http.StatusUnauthorized)
		return
	}

	token, expires, err := s.issuer.GenerateToken(req.Client)
	if err != nil {
		logger.Error("[Auth] 生成Token失败", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}{token, expires})
}

// authMiddleware 校验 Bearer 令牌，未配置口令时放行
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.passHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := s.issuer.ParseToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey, claims.Client)))
	})
}

// authQuery 与 authMiddleware 相同，但令牌来自查询参数
func (s *Server) authQuery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.passHash != "" {
			if _, err := s.issuer.ParseToken(r.URL.Query().Get("token")); err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// corsMiddleware 允许本机前端跨端口访问
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
