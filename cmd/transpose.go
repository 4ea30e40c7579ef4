package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/core/audio"
	"github.com/pbrusco/musicians-helper/core/theory"
)

var transposeChords string

var transposeCmd = &cobra.Command{
	Use:   "transpose [project-id] <semitones>",
	Short: "移调",
	Long: `把项目中所有和弦和调号移动若干半音，保存为可撤销的一步。
使用 --chords 时只打印移调后的和弦，不读取项目。`,
	Example: `  musicians-helper transpose 3f1c... 2
  musicians-helper transpose --chords "Am7 D7 Gmaj7" -- -3`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		semitones, err := strconv.Atoi(args[len(args)-1])
		if err != nil {
			return fmt.Errorf("无效的半音数 %q: %w", args[len(args)-1], err)
		}

		if transposeChords != "" {
			fmt.Println(theory.TransposeChordLine(transposeChords, semitones))
			return nil
		}
		if len(args) != 2 {
			return fmt.Errorf("需要项目ID")
		}

		cfg := config.Load(envFile)
		initLogger(cfg, false)
		manager, closeAll := newManager(cmd.Context(), cfg, audio.NewNullEngine())
		defer closeAll()

		sess, err := manager.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		before := sess.State().GridConfig.KeySignature
		sess.Transpose(semitones)
		state := sess.State()

		fmt.Printf("调号: %s -> %s\n", before, state.GridConfig.KeySignature)
		for _, m := range state.Measures {
			if strings.TrimSpace(m.Chords) == "" {
				continue
			}
			fmt.Printf("%4d  %s\n", m.Index, m.Chords)
		}
		// 关闭时保存
		return nil
	},
}

func init() {
	transposeCmd.Flags().StringVar(&transposeChords, "chords", "", "只移调给定的和弦（空格分隔）")
	rootCmd.AddCommand(transposeCmd)
}
