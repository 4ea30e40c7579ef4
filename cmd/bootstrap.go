package cmd

import (
	"context"

	"github.com/pbrusco/musicians-helper/cache"
	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/core/audio"
	"github.com/pbrusco/musicians-helper/core/session"
	"github.com/pbrusco/musicians-helper/db"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
	"github.com/pbrusco/musicians-helper/repository"
	"github.com/pbrusco/musicians-helper/storage"
)

// initLogger 按配置初始化日志，console=false 时只写文件
func initLogger(cfg *config.Config, console bool) {
	logger.InitLogger(logger.Config{
		Level:          logger.LogLevel(cfg.LogLevel),
		OutputPath:     cfg.LogFile,
		MaxSize:        100,
		MaxBackups:     5,
		MaxAge:         30,
		Compress:       true,
		DisableConsole: !console,
	})
}

// defaultGrid 新项目的网格配置
func defaultGrid(cfg *config.Config) model.GridConfig {
	g := model.DefaultGridConfig()
	g.BPM = cfg.DefaultBPM
	g.TimeSigTop, g.TimeSigBottom = cfg.DefaultTimeSig[0], cfg.DefaultTimeSig[1]
	return g
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		HistoryLimit:  cfg.HistoryLimit,
		AutosaveDelay: cfg.AutosaveDelay,
		TickInterval:  cfg.TickInterval,
		DefaultGrid:   defaultGrid(cfg),
	}
}

// openStore 连接 MySQL、Redis、MinIO
// 任一服务不可用时降级：项目存内存，跳过草稿或音频存储。
func openStore(ctx context.Context, cfg *config.Config) (session.Store, func()) {
	var (
		store   session.Store
		closers []func() error
	)

	if memoryOnly {
		logger.Info("使用内存存储")
		store.Projects = repository.NewMemoryProjectRepository()
		return store, func() {}
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Warn("数据库不可用，项目将只保存在内存中", logger.ErrorField(err))
		store.Projects = repository.NewMemoryProjectRepository()
	} else if err := db.AutoMigrate(); err != nil {
		logger.Warn("数据表迁移失败，项目将只保存在内存中", logger.ErrorField(err))
		db.CloseGormDB()
		store.Projects = repository.NewMemoryProjectRepository()
	} else {
		store.Projects = repository.NewGormProjectRepository(db.GormDB)
		closers = append(closers, db.CloseGormDB)
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis 不可用，跳过草稿缓存", logger.ErrorField(err))
	} else {
		store.Drafts = cache.NewDraftCache(cache.RedisClient, cfg.DraftTTL)
		closers = append(closers, cache.CloseRedis)
	}

	if cfg.MinioAccessKey == "" {
		logger.Info("未配置 MinIO，音频不会持久化")
	} else if blobs, err := storage.NewAudioStore(cfg); err != nil {
		logger.Warn("MinIO 客户端创建失败", logger.ErrorField(err))
	} else if err := blobs.EnsureBucket(ctx); err != nil {
		logger.Warn("MinIO 不可用，音频不会持久化", logger.ErrorField(err))
	} else {
		store.Blobs = blobs
	}

	return store, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("关闭连接失败", logger.ErrorField(err))
			}
		}
	}
}

// newManager 组装项目管理器，返回的函数关闭会话和外部连接
func newManager(ctx context.Context, cfg *config.Config, engine audio.Engine) (*session.Manager, func()) {
	store, closeStore := openStore(ctx, cfg)
	if engine == nil {
		engine = audio.New(cfg.AudioEngine, cfg.AudioSampleRate)
	}
	manager := session.NewManager(store, engine, sessionOptions(cfg))
	return manager, func() {
		manager.Close(context.Background())
		closeStore()
	}
}
