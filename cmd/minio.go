package cmd

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/storage"
)

var (
	minioProject string
	minioStats   bool
	minioDelete  bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的项目音频，支持列出文件、查看统计信息、删除某个项目的音频。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		cfg := config.Load(envFile)
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewAudioStore(cfg)
		if err != nil {
			log.Fatalf("创建MinIO客户端失败: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		if minioDelete {
			if minioProject == "" {
				log.Fatal("删除操作需要指定项目ID")
			}
			fmt.Printf("\n删除项目音频: %s\n", minioProject)
			if err := store.DeleteProject(ctx, minioProject); err != nil {
				log.Fatalf("删除失败: %v", err)
			}
			fmt.Println("删除完成")
			return
		}

		prefix := storage.ProjectPrefix(minioProject)
		objects, stats, err := store.ListObjects(ctx, prefix)
		if err != nil {
			log.Fatalf("列出文件失败: %v", err)
		}

		if minioStats {
			fmt.Println("\n存储桶统计信息:")
			fmt.Printf("  对象数: %d\n", stats.TotalObjects)
			fmt.Printf("  总大小: %s\n", storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Printf("  最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
			}
			ids := make([]string, 0, len(stats.Projects))
			for id := range stats.Projects {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			fmt.Printf("  项目数: %d\n", len(ids))
			for _, id := range ids {
				fmt.Printf("    %s  %s\n", id, storage.FormatSize(stats.Projects[id]))
			}
			return
		}

		fmt.Printf("\n列出存储桶中的文件 (前缀: %s)...\n", prefix)
		for _, obj := range objects {
			fmt.Printf("  %-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04"))
		}
		fmt.Printf("\n共 %d 个文件，%s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioProject, "project", "p", "", "只操作指定项目的音频")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定项目的所有音频")

	minioCmd.Example = `  # 列出所有音频
  musicians-helper minio

  # 显示存储桶统计信息
  musicians-helper minio -s

  # 删除某个项目的音频
  musicians-helper minio -d -p 3f1c...`
}
