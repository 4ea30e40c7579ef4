package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动本地 API 服务",
	Long:  `在回环地址上启动 HTTP API 和传输状态推送，供本机前端使用`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(envFile)
	initLogger(cfg, true)
	defer logger.Sync()

	manager, closeAll := newManager(ctx, cfg, nil)
	defer closeAll()

	srv, err := server.New(cfg, manager)
	if err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	// 配置热加载：日志级别和新项目的默认网格
	go func() {
		err := config.Watch(ctx, envFile, func(next *config.Config) {
			logger.SetLevel(logger.LogLevel(next.LogLevel))
			manager.SetDefaultGrid(defaultGrid(next))
			logger.Info("配置已重新加载",
				logger.String("level", logger.GetLevel()),
				logger.Float64("defaultBpm", next.DefaultBPM))
		})
		if err != nil {
			logger.Warn("配置监听未启动", logger.String("file", envFile), logger.ErrorField(err))
		}
	}()

	return srv.Run(ctx)
}
