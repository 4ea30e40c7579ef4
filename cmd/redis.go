package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbrusco/musicians-helper/cache"
	"github.com/pbrusco/musicians-helper/config"
)

var redisRecent int

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，进行基本读写操作，并列出最近打开的项目和草稿。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始测试Redis连接...")

		cfg := config.Load(envFile)
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		defer func() {
			if err := cache.CloseRedis(); err != nil {
				log.Printf("关闭Redis连接时发生错误: %v", err)
			}
		}()
		fmt.Println("Redis连接成功！")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := cache.TestRedis(ctx); err != nil {
			log.Fatalf("Redis操作测试失败: %v", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		drafts := cache.NewDraftCache(cache.RedisClient, cfg.DraftTTL)
		ids, err := drafts.RecentProjects(ctx, redisRecent)
		if err != nil {
			log.Fatalf("读取最近项目失败: %v", err)
		}
		fmt.Printf("\n最近打开的项目 (%d):\n", len(ids))
		for _, id := range ids {
			draft, err := drafts.GetDraft(ctx, id)
			switch {
			case err != nil:
				fmt.Printf("  %s  草稿读取失败: %v\n", id, err)
			case draft == nil:
				fmt.Printf("  %s\n", id)
			default:
				fmt.Printf("  %s  草稿 %s, %d 小节\n", id, draft.SavedAt.Format("2006-01-02 15:04:05"), len(draft.State.Measures))
			}
		}
		fmt.Println("\nRedis测试完成。")
	},
}

func init() {
	redisCmd.Flags().IntVarP(&redisRecent, "recent", "n", 10, "列出的最近项目数")
	rootCmd.AddCommand(redisCmd)
}
