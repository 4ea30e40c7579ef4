package cache

import (
	"context"
	"testing"

	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/model"
)

func TestDraftCacheWithoutClient(t *testing.T) {
	ctx := context.Background()
	c := NewDraftCache(nil, 0)

	if c.ttl != defaultDraftTTL {
		t.Errorf("ttl = %v", c.ttl)
	}
	if err := c.SaveDraft(ctx, "p", model.ProjectState{}); err == nil {
		t.Error("SaveDraft without client succeeded")
	}
	if d, err := c.GetDraft(ctx, "p"); err == nil || d != nil {
		t.Errorf("GetDraft = %v, %v", d, err)
	}
	if err := c.TouchRecent(ctx, "p"); err == nil {
		t.Error("TouchRecent without client succeeded")
	}
	if _, err := c.RecentProjects(ctx, 5); err == nil {
		t.Error("RecentProjects without client succeeded")
	}
	if err := c.Forget(ctx, "p"); err == nil {
		t.Error("Forget without client succeeded")
	}
}

func TestRedisOptions(t *testing.T) {
	cfg := &config.Config{RedisHost: "localhost", RedisPort: "6380", RedisDB: 2}
	opts := Options(cfg)
	if opts.Addr != "localhost:6380" || opts.DB != 2 {
		t.Errorf("options = %+v", opts)
	}
	if err := TestRedis(context.Background()); err == nil {
		t.Error("TestRedis without client should fail")
	}
}
