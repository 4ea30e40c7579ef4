package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pbrusco/musicians-helper/core/audio"
	"github.com/pbrusco/musicians-helper/core/editing"
	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

// Close 停止位置推进和防抖计时，保存未保存的修改并停止播放
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopAutosaveLocked()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	err := s.Save(ctx)
	s.transport.Unload()

	s.mu.Lock()
	s.closeListenersLocked()
	s.mu.Unlock()
	return err
}

// start 启动后台位置推进
func (s *Session) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	go s.Run(ctx)
}

// ========== Manager ==========

// Manager 项目管理与活动会话切换
// 同一时间只有一个活动会话，共享同一个音频引擎。
type Manager struct {
	mu     sync.Mutex
	store  Store
	engine audio.Engine
	opts   Options

	active *Session
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager 创建项目管理器，store.Projects 必须非空
func NewManager(store Store, engine audio.Engine, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:  store,
		engine: engine,
		opts:   opts.withDefaults(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Create 创建空项目
func (m *Manager) Create(ctx context.Context, name string) (*model.Project, error) {
	m.mu.Lock()
	cfg := m.opts.DefaultGrid
	m.mu.Unlock()
	return m.createWithState(ctx, name, "", model.ProjectState{
		Measures:   editing.AddBlock(nil, editing.DefaultBlockSize),
		GridConfig: cfg,
		Params:     model.DefaultParams(),
	})
}

// SetDefaultGrid 修改之后新建项目使用的网格配置
func (m *Manager) SetDefaultGrid(cfg model.GridConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.DefaultGrid = grid.Sanitize(cfg)
}

func (m *Manager) createWithState(ctx context.Context, name, fileName string, state model.ProjectState) (*model.Project, error) {
	if name == "" {
		name = fileName
	}
	if name == "" {
		name = "未命名项目"
	}
	project := &model.Project{
		ID:         uuid.New().String(),
		Name:       name,
		FileName:   fileName,
		Measures:   model.MeasureList(state.Measures),
		GridConfig: model.GridColumn(state.GridConfig),
		Markers:    model.MarkerList(state.Markers),
		Params:     model.ParamsColumn(state.Params),
	}
	if err := m.store.Projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("创建项目失败: %v: %w", err, model.ErrPersistence)
	}
	logger.Info("项目已创建",
		logger.ProjectID(project.ID),
		logger.String("name", name))
	return project, nil
}

// List 列出所有项目，最近修改的在前
func (m *Manager) List(ctx context.Context) ([]model.ProjectMeta, error) {
	projects, err := m.store.Projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取项目列表失败: %v: %w", err, model.ErrPersistence)
	}
	metas := make([]model.ProjectMeta, 0, len(projects))
	for _, p := range projects {
		metas = append(metas, p.Meta())
	}
	return metas, nil
}

// Recent 最近打开的项目ID
func (m *Manager) Recent(ctx context.Context, limit int) ([]string, error) {
	type recentLister interface {
		RecentProjects(ctx context.Context, limit int) ([]string, error)
	}
	if rl, ok := m.store.Drafts.(recentLister); ok {
		return rl.RecentProjects(ctx, limit)
	}
	return nil, nil
}

// Open 切换活动项目：停止并保存旧会话，恢复新项目的状态和音频
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.ID() == id {
		return m.active, nil
	}

	project, err := m.store.Projects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("读取项目 %s: %v: %w", id, err, model.ErrPersistence)
	}
	if project == nil {
		return nil, fmt.Errorf("项目 %s: %w", id, model.ErrNotFound)
	}

	m.closeActiveLocked(ctx)

	s := New(id, m.engine, m.store, m.opts)
	s.SetName(project.Name)

	state, fromDraft := m.loadState(ctx, project)
	s.Restore(state)
	if fromDraft {
		s.mu.Lock()
		s.markDirtyLocked()
		s.mu.Unlock()
	}

	if project.AudioKey != "" && m.store.Blobs != nil {
		data, err := m.store.Blobs.GetAudio(ctx, project.AudioKey)
		if err != nil {
			logger.Warn("恢复音频失败",
				logger.ProjectID(id),
				logger.String("key", project.AudioKey),
				logger.ErrorField(err))
			s.setAudioError(err)
		} else if err := s.attachAudio(data, project.FileName); err != nil {
			logger.Warn("音频解码失败", logger.ProjectID(id), logger.ErrorField(err))
		}
	}

	if m.store.Drafts != nil {
		if err := m.store.Drafts.TouchRecent(ctx, id); err != nil {
			logger.Warn("更新最近项目失败", logger.ProjectID(id), logger.ErrorField(err))
		}
	}

	s.start(m.ctx)
	m.active = s
	logger.Info("已切换项目",
		logger.ProjectID(id),
		logger.String("name", project.Name),
		logger.Bool("fromDraft", fromDraft))
	return s, nil
}

// loadState 草稿比数据库新时使用草稿
func (m *Manager) loadState(ctx context.Context, project *model.Project) (model.ProjectState, bool) {
	state := project.State()
	if m.store.Drafts == nil {
		return state, false
	}
	draft, err := m.store.Drafts.GetDraft(ctx, project.ID)
	if err != nil {
		logger.Warn("读取草稿失败", logger.ProjectID(project.ID), logger.ErrorField(err))
		return state, false
	}
	if draft == nil || !draft.SavedAt.After(project.UpdatedAt) {
		return state, false
	}
	return draft.State, true
}

// Active 当前活动会话，没有时返回 nil
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Session 返回指定项目的活动会话
func (m *Manager) Session(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.ID() != id {
		return nil, fmt.Errorf("项目 %s 未打开: %w", id, model.ErrNotFound)
	}
	return m.active, nil
}

// Delete 删除项目及其音频和草稿
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	project, err := m.store.Projects.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("读取项目 %s: %v: %w", id, err, model.ErrPersistence)
	}
	if project == nil {
		return fmt.Errorf("项目 %s: %w", id, model.ErrNotFound)
	}

	if m.active != nil && m.active.ID() == id {
		m.active.mu.Lock()
		m.active.dirty = false
		m.active.mu.Unlock()
		m.closeActiveLocked(ctx)
	}

	if err := m.store.Projects.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除项目 %s: %v: %w", id, err, model.ErrPersistence)
	}
	if m.store.Blobs != nil && project.AudioKey != "" {
		if err := m.store.Blobs.DeleteProject(ctx, id); err != nil {
			logger.Warn("删除项目音频失败", logger.ProjectID(id), logger.ErrorField(err))
		}
	}
	if m.store.Drafts != nil {
		if err := m.store.Drafts.Forget(ctx, id); err != nil {
			logger.Warn("删除草稿失败", logger.ProjectID(id), logger.ErrorField(err))
		}
	}
	logger.Info("项目已删除", logger.ProjectID(id))
	return nil
}

// Rename 修改项目名称
func (m *Manager) Rename(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("项目名称不能为空: %w", model.ErrValidation)
	}
	if err := m.store.Projects.Rename(ctx, id, name); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return fmt.Errorf("重命名项目 %s: %v: %w", id, err, model.ErrPersistence)
	}
	m.mu.Lock()
	if m.active != nil && m.active.ID() == id {
		m.active.SetName(name)
	}
	m.mu.Unlock()
	return nil
}

// ExportJSON 导出项目 JSON，活动会话导出内存中的最新状态
func (m *Manager) ExportJSON(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active != nil && active.ID() == id {
		return active.ExportJSON()
	}

	project, err := m.store.Projects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("读取项目 %s: %v: %w", id, err, model.ErrPersistence)
	}
	if project == nil {
		return nil, fmt.Errorf("项目 %s: %w", id, model.ErrNotFound)
	}
	return EncodeProjectFile(project.FileName, project.State())
}

// ImportJSON 从项目 JSON 创建新项目
func (m *Manager) ImportJSON(ctx context.Context, data []byte, name string) (*model.Project, error) {
	fileName, state, err := DecodeProjectFile(data)
	if err != nil {
		return nil, err
	}
	return m.createWithState(ctx, name, fileName, state)
}

// Close 关闭活动会话和音频引擎
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeActiveLocked(ctx)
	m.cancel()
	if m.engine != nil {
		m.engine.Close()
	}
}

func (m *Manager) closeActiveLocked(ctx context.Context) {
	if m.active == nil {
		return
	}
	prev := m.active
	m.active = nil

	closeCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := prev.Close(closeCtx); err != nil {
		logger.Warn("关闭会话时保存失败",
			logger.ProjectID(prev.ID()),
			logger.ErrorField(err))
	}
	logger.Debug("会话已关闭", logger.ProjectID(prev.ID()))
}
