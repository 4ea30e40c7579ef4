package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pbrusco/musicians-helper/model"

	"github.com/go-redis/redis/v8"
)

const (
	draftKey        = keyPrefix + "draft:%s"        // String: 未落库的项目状态 JSON
	recentKey       = keyPrefix + "projects:recent" // Sorted Set: projectID -> 最近打开时间
	defaultDraftTTL = 72 * time.Hour
	recentLimit     = 50
)

// Draft 自动保存草稿
type Draft struct {
	ProjectID string             `json:"projectId"`
	State     model.ProjectState `json:"state"`
	SavedAt   time.Time          `json:"savedAt"`
}

// DraftCache 草稿与最近项目缓存
type DraftCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftCache 创建草稿缓存，ttl<=0 时使用默认值
func NewDraftCache(client *redis.Client, ttl time.Duration) *DraftCache {
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}
	return &DraftCache{client: client, ttl: ttl}
}

// ========== 草稿 ==========

// SaveDraft 保存草稿并刷新最近项目
func (c *DraftCache) SaveDraft(ctx context.Context, projectID string, state model.ProjectState) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(Draft{ProjectID: projectID, State: state, SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(draftKey, projectID), data, c.ttl)
	pipe.ZAdd(ctx, recentKey, &redis.Z{Score: float64(time.Now().Unix()), Member: projectID})
	_, err = pipe.Exec(ctx)
	return err
}

// GetDraft 读取草稿，不存在时返回 (nil, nil)
func (c *DraftCache) GetDraft(ctx context.Context, projectID string) (*Draft, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := c.client.Get(ctx, fmt.Sprintf(draftKey, projectID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var draft Draft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

// DeleteDraft 删除草稿（状态已落库后调用）
func (c *DraftCache) DeleteDraft(ctx context.Context, projectID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Del(ctx, fmt.Sprintf(draftKey, projectID)).Err()
}

// ========== 最近项目 ==========

// TouchRecent 记录项目最近一次打开，超出上限的旧记录被裁剪
func (c *DraftCache) TouchRecent(ctx context.Context, projectID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, recentKey, &redis.Z{Score: float64(time.Now().Unix()), Member: projectID})
	pipe.ZRemRangeByRank(ctx, recentKey, 0, -recentLimit-1)
	_, err := pipe.Exec(ctx)
	return err
}

// RecentProjects 返回最近打开的项目ID，最新的在前
func (c *DraftCache) RecentProjects(ctx context.Context, limit int) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}
	ids, err := c.client.ZRevRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	return ids, nil
}

// Forget 删除项目的草稿和最近记录
func (c *DraftCache) Forget(ctx context.Context, projectID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(draftKey, projectID))
	pipe.ZRem(ctx, recentKey, projectID)
	_, err := pipe.Exec(ctx)
	return err
}
