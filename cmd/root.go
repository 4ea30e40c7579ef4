package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envFile    string
	memoryOnly bool
)

var rootCmd = &cobra.Command{
	Use:   "musicians-helper",
	Short: "音乐转写工作台",
	Long:  `加载录音，按网格划分小节，记录和弦与歌词，支持变速、循环、移调和撤销。默认启动本地 API 服务。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "配置文件路径，修改后自动重新加载")
	rootCmd.PersistentFlags().BoolVar(&memoryOnly, "memory", false, "不连接 MySQL/Redis/MinIO，项目只保存在内存中")
}
