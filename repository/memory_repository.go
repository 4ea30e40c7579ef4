package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pbrusco/musicians-helper/model"
)

// memoryProjectRepository 进程内实现，数据库不可用时使用
type memoryProjectRepository struct {
	mu       sync.RWMutex
	projects map[string]*model.Project
	now      func() time.Time
}

// NewMemoryProjectRepository 创建内存项目仓库
func NewMemoryProjectRepository() ProjectRepository {
	return &memoryProjectRepository{
		projects: make(map[string]*model.Project),
		now:      time.Now,
	}
}

func clone(p *model.Project) *model.Project {
	out := *p
	out.Measures = model.CloneMeasures(p.Measures)
	out.Markers = model.CloneMarkers(p.Markers)
	return &out
}

func (r *memoryProjectRepository) Create(ctx context.Context, project *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.projects[project.ID]; exists {
		return fmt.Errorf("project %s already exists", project.ID)
	}
	now := r.now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	r.projects[project.ID] = clone(project)
	return nil
}

func (r *memoryProjectRepository) GetByID(ctx context.Context, id string) (*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

func (r *memoryProjectRepository) List(ctx context.Context) ([]*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *memoryProjectRepository) SaveState(ctx context.Context, id string, state model.ProjectState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}
	p.Measures = model.CloneMeasures(state.Measures)
	p.GridConfig = model.GridColumn(state.GridConfig)
	p.Markers = model.CloneMarkers(state.Markers)
	p.Params = model.ParamsColumn(state.Params)
	p.UpdatedAt = r.now()
	return nil
}

func (r *memoryProjectRepository) SetAudio(ctx context.Context, id, fileName, audioKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}
	p.FileName = fileName
	p.AudioKey = audioKey
	p.UpdatedAt = r.now()
	return nil
}

func (r *memoryProjectRepository) Rename(ctx context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}
	p.Name = name
	return nil
}

func (r *memoryProjectRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.projects, id)
	return nil
}
