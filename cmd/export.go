package cmd

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/core/audio"
)

var scoreOutput string

var midiCmd = &cobra.Command{
	Use:   "midi <project-id>",
	Short: "导出标准 MIDI 文件",
	Long:  `导出包含速度表（含自由速度小节）、和弦、歌词和节拍轨的 SMF 文件`,
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
		var buf bytes.Buffer
		if err := sess.ExportMIDI(&buf); err != nil {
			return err
		}
		return writeOutput(scoreOutput, buf.Bytes())
	},
}

var musicxmlCmd = &cobra.Command{
	Use:   "musicxml <project-id>",
	Short: "导出 MusicXML 乐谱",
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
		data, err := sess.ExportMusicXML()
		if err != nil {
			return err
		}
		return writeOutput(scoreOutput, data)
	},
}

func init() {
	midiCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "输出文件，默认标准输出")
	musicxmlCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "输出文件，默认标准输出")
	rootCmd.AddCommand(midiCmd, musicxmlCmd)
}
