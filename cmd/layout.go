package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/core/audio"
	"github.com/pbrusco/musicians-helper/core/grid"
)

var layoutCmd = &cobra.Command{
	Use:   "layout <project-id>",
	Short: "打印小节布局",
	Long:  `按当前网格配置计算每个小节的开始时间和时长，并列出和弦与歌词`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(envFile)
		initLogger(cfg, false)
		manager, closeAll := newManager(cmd.Context(), cfg, audio.NewNullEngine())
		defer closeAll()

		sess, err := manager.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		view := sess.View()
		g := view.GridConfig
		fmt.Printf("%s  %.1f BPM (%s)  %d/%d  %s  offset %.3fs\n",
			view.Name, g.BPM, g.BeatUnit, g.TimeSigTop, g.TimeSigBottom, g.KeySignature, g.Offset)
		fmt.Printf("标准小节时长 %.3fs\n\n", grid.StandardDuration(g))

		measures := make(map[int]int, len(view.Measures))
		for i, m := range view.Measures {
			measures[m.Index] = i
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\t开始\t时长\t\t和弦\t歌词")
		for _, slot := range view.Layout {
			m := view.Measures[measures[slot.Index]]
			rubato := ""
			if slot.Rubato {
				rubato = "rubato"
			}
			fmt.Fprintf(tw, "%d\t%s\t%.3f\t%s\t%s\t%s\n",
				slot.Index, clock(slot.Start), slot.Duration, rubato, m.Chords, m.Lyrics)
		}
		return tw.Flush()
	},
}

// clock 秒数格式化为 m:ss.mmm
func clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	mins := int(seconds) / 60
	return fmt.Sprintf("%d:%06.3f", mins, seconds-float64(mins*60))
}

func init() {
	rootCmd.AddCommand(layoutCmd)
}
