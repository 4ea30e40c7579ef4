package session

import (
	"context"

	"github.com/pbrusco/musicians-helper/cache"
	"github.com/pbrusco/musicians-helper/model"
	"github.com/pbrusco/musicians-helper/repository"
)

// Drafts 自动保存草稿与最近项目
type Drafts interface {
	SaveDraft(ctx context.Context, projectID string, state model.ProjectState) error
	GetDraft(ctx context.Context, projectID string) (*cache.Draft, error)
	DeleteDraft(ctx context.Context, projectID string) error
	TouchRecent(ctx context.Context, projectID string) error
	Forget(ctx context.Context, projectID string) error
}

// Blobs 项目音频存储
type Blobs interface {
	PutAudio(ctx context.Context, projectID, fileName string, data []byte) (string, error)
	GetAudio(ctx context.Context, key string) ([]byte, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// Store 会话使用的持久化协作者，任一字段为 nil 时跳过对应功能
type Store struct {
	Projects repository.ProjectRepository
	Drafts   Drafts
	Blobs    Blobs
}
