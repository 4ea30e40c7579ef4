package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

const defaultRecentLimit = 10

// HealthHandler 健康检查
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	}
	if active := s.manager.Active(); active != nil {
		resp["activeProject"] = active.ID()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListProjectsHandler 项目列表
func (s *Server) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	metas, err := s.manager.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

// CreateProjectHandler 新建项目
func (s *Server) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	project, err := s.manager.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project.Meta())
}

// RecentProjectsHandler 最近打开的项目
func (s *Server) RecentProjectsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, validationf("invalid limit %q", v))
			return
		}
		limit = n
	}
	ids, err := s.manager.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, fmt.Errorf("读取最近项目: %v: %w", err, model.ErrPersistence))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// ImportProjectHandler 从项目 JSON 新建项目，?name= 覆盖名称
func (s *Server) ImportProjectHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, validationf("read body: %v", err))
		return
	}
	project, err := s.manager.ImportJSON(r.Context(), data, r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project.Meta())
}

// RenameProjectHandler 重命名项目
func (s *Server) RenameProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.manager.Rename(r.Context(), mux.Vars(r)["id"], req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteProjectHandler 删除项目
func (s *Server) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.manager.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	logger.Info("[API] 项目已删除", logger.ProjectID(id))
	w.WriteHeader(http.StatusNoContent)
}

// OpenProjectHandler 切换活动项目，返回会话视图
func (s *Server) OpenProjectHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Open(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// ExportProjectHandler 下载项目 JSON
func (s *Server) ExportProjectHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data, err := s.manager.ExportJSON(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, id))
	w.Write(data)
}
