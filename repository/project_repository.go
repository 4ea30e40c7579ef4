package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/pbrusco/musicians-helper/model"

	"gorm.io/gorm"
)

// ProjectRepository 项目数据访问接口
// 查询不到时返回 (nil, nil)。
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context) ([]*model.Project, error)
	SaveState(ctx context.Context, id string, state model.ProjectState) error
	SetAudio(ctx context.Context, id, fileName, audioKey string) error
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

// gormProjectRepository GORM 实现
type gormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository 创建 GORM 项目仓库
func NewGormProjectRepository(db *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: db}
}

// Create 创建项目
func (r *gormProjectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// GetByID 根据ID获取项目
func (r *gormProjectRepository) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

// List 按最近修改时间倒序列出项目
func (r *gormProjectRepository) List(ctx context.Context) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.WithContext(ctx).
		Omit("measures", "markers").
		Order("updated_at DESC").
		Find(&projects).Error
	return projects, err
}

// SaveState 保存转写状态
func (r *gormProjectRepository) SaveState(ctx context.Context, id string, state model.ProjectState) error {
	result := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"measures":    model.MeasureList(state.Measures),
			"grid_config": model.GridColumn(state.GridConfig),
			"markers":     model.MarkerList(state.Markers),
			"params":      model.ParamsColumn(state.Params),
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// SetAudio 记录已上传音频
func (r *gormProjectRepository) SetAudio(ctx context.Context, id, fileName, audioKey string) error {
	return r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"file_name":  fileName,
			"audio_key":  audioKey,
			"updated_at": time.Now(),
		}).Error
}

// Rename 重命名项目
func (r *gormProjectRepository) Rename(ctx context.Context, id, name string) error {
	return r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		Update("name", name).Error
}

// Delete 删除项目
func (r *gormProjectRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Project{}).Error
}
