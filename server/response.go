package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/pbrusco/musicians-helper/core/session"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

// errNoSession 没有打开的项目
var errNoSession = errors.New("no active project")

const maxJSONBody = 8 << 20

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

// writeError 按错误分类映射状态码
func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("请求处理失败", logger.Int("status", status), logger.ErrorField(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrNotLoaded), errors.Is(err, errNoSession):
		return http.StatusConflict
	case errors.Is(err, model.ErrPersistence):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeJSON 解析请求体，失败时返回 ErrValidation
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, model.ErrValidation)
	}
	return nil
}

// activeSession 返回当前会话，没有时写入 409
func (s *Server) activeSession(w http.ResponseWriter) (*session.Session, bool) {
	active := s.manager.Active()
	if active == nil {
		writeError(w, errNoSession)
		return nil, false
	}
	return active, true
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), model.ErrValidation)
}
