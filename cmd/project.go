package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pbrusco/musicians-helper/config"
)

var (
	projectOutput string
	projectName   string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "项目管理",
	Long:  `列出、删除、导出和导入项目`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有项目",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(envFile)
		initLogger(cfg, false)
		manager, closeAll := newManager(cmd.Context(), cfg, nil)
		defer closeAll()

		metas, err := manager.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\t名称\t音频\t修改时间")
		for _, m := range metas {
			audio := "-"
			if m.HasAudio {
				audio = m.FileName
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Name, audio, m.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "删除项目及其音频和草稿",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(envFile)
		initLogger(cfg, false)
		manager, closeAll := newManager(cmd.Context(), cfg, nil)
		defer closeAll()

		if err := manager.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("项目 %s 已删除\n", args[0])
		return nil
	},
}

var projectExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "导出项目 JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(envFile)
		initLogger(cfg, false)
		manager, closeAll := newManager(cmd.Context(), cfg, nil)
		defer closeAll()

		data, err := manager.ExportJSON(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeOutput(projectOutput, data)
	},
}

var projectImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "从项目 JSON 新建项目",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取文件失败: %w", err)
		}
		cfg := config.Load(envFile)
		initLogger(cfg, false)
		manager, closeAll := newManager(cmd.Context(), cfg, nil)
		defer closeAll()

		project, err := manager.ImportJSON(cmd.Context(), data, projectName)
		if err != nil {
			return err
		}
		fmt.Printf("已导入项目 %s (%s)\n", project.Name, project.ID)
		return nil
	},
}

// writeOutput 写入文件，path 为空时写到标准输出
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "已写入 %s\n", path)
	return nil
}

func init() {
	projectExportCmd.Flags().StringVarP(&projectOutput, "output", "o", "", "输出文件，默认标准输出")
	projectImportCmd.Flags().StringVarP(&projectName, "name", "n", "", "项目名称，默认使用文件中的音频文件名")

	projectCmd.AddCommand(projectListCmd, projectDeleteCmd, projectExportCmd, projectImportCmd)
	rootCmd.AddCommand(projectCmd)
}
