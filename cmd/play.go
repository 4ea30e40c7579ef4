package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/core/session"
	"github.com/pbrusco/musicians-helper/core/transport"
	"github.com/pbrusco/musicians-helper/core/utils"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

const (
	speedStep    = 0.05
	redrawPeriod = 50 * time.Millisecond
	cellWidth    = 18
)

var playName string

var playCmd = &cobra.Command{
	Use:   "play [project-id | audio.wav | url]",
	Short: "终端播放器",
	Long: `在终端中播放项目，显示当前小节、和弦和歌词。
参数是音频文件或 http(s) 地址时新建项目并加载该音频；不带参数时打开最近的项目。

按键: 空格 播放/暂停  s 停止  ←/→ 上/下一小节  [ ] 循环起止  l 开关循环
      +/- 速度  m 节拍器  u/r 撤销/重做  t/T 升/降半音  q 退出`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(envFile)
		initLogger(cfg, false)
		defer logger.Sync()

		ctx := cmd.Context()
		manager, closeAll := newManager(ctx, cfg, nil)
		defer closeAll()

		sess, err := openForPlay(ctx, manager, args)
		if err != nil {
			return err
		}

		screen, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		if err := screen.Init(); err != nil {
			return err
		}
		defer screen.Fini()

		p := newPlayer(sess, screen)
		return p.run(ctx)
	},
}

func init() {
	playCmd.Flags().StringVarP(&playName, "name", "n", "", "用音频文件新建项目时的项目名称")
	rootCmd.AddCommand(playCmd)
}

// openForPlay 按参数打开项目：音频文件、项目ID，或最近的项目
func openForPlay(ctx context.Context, m *session.Manager, args []string) (*session.Session, error) {
	if len(args) == 1 {
		if isAudioSource(args[0]) {
			data, err := utils.ReadAudio(ctx, args[0])
			if err != nil {
				return nil, err
			}
			fileName := utils.SourceName(args[0])
			name := playName
			if name == "" {
				name = utils.TrimExt(fileName)
			}
			project, err := m.Create(ctx, name)
			if err != nil {
				return nil, err
			}
			sess, err := m.Open(ctx, project.ID)
			if err != nil {
				return nil, err
			}
			if err := sess.LoadAudio(ctx, data, fileName); err != nil {
				return nil, err
			}
			return sess, nil
		}
		return m.Open(ctx, args[0])
	}

	if ids, err := m.Recent(ctx, 1); err == nil && len(ids) > 0 {
		if sess, err := m.Open(ctx, ids[0]); err == nil {
			return sess, nil
		}
	}
	metas, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(metas) > 0 {
		return m.Open(ctx, metas[0].ID)
	}
	project, err := m.Create(ctx, playName)
	if err != nil {
		return nil, err
	}
	return m.Open(ctx, project.ID)
}

// isAudioSource 参数是本地文件或 URL 时按音频处理，否则视为项目ID
func isAudioSource(arg string) bool {
	if utils.IsRemote(arg) {
		return true
	}
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

// ========== 播放器 ==========

type player struct {
	sess   *session.Session
	screen tcell.Screen
	msg    string
}

func newPlayer(sess *session.Session, screen tcell.Screen) *player {
	return &player{sess: sess, screen: screen}
}

func (p *player) run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	updates, cancel := p.sess.Subscribe()
	defer cancel()

	ticker := time.NewTicker(redrawPeriod)
	defer ticker.Stop()

	dirty := true
	for {
		if dirty {
			p.draw()
			dirty = false
		}
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !p.handleKey(ev) {
					return nil
				}
			case *tcell.EventResize:
				p.screen.Sync()
			}
			dirty = true
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			// 位置更新很频繁，统一在 ticker 上重绘
		case <-ticker.C:
			dirty = true
		}
	}
}

// handleKey 处理按键，返回 false 表示退出
func (p *player) handleKey(ev *tcell.EventKey) bool {
	p.msg = ""
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		p.sess.SeekRelative(-1)
		return true
	case tcell.KeyRight:
		p.sess.SeekRelative(1)
		return true
	case tcell.KeyHome:
		p.sess.Seek(0)
		return true
	case tcell.KeyRune:
	default:
		return true
	}

	switch ev.Rune() {
	case 'q':
		return false
	case ' ':
		p.sess.TogglePlay()
	case 's':
		p.sess.Stop()
	case '[':
		p.sess.SetLoop(session.LoopSetStart, nil)
	case ']':
		p.sess.SetLoop(session.LoopSetEnd, nil)
	case 'l':
		p.sess.SetLoop(session.LoopToggle, nil)
	case '+', '=':
		p.changeSpeed(speedStep)
	case '-':
		p.changeSpeed(-speedStep)
	case 'm':
		on := !p.sess.View().Params.Metronome
		p.sess.SetParams(session.ParamsPatch{Metronome: &on})
	case 'u':
		if !p.sess.Undo() {
			p.msg = "没有可撤销的操作"
		}
	case 'r':
		if !p.sess.Redo() {
			p.msg = "没有可重做的操作"
		}
	case 't':
		p.sess.Transpose(1)
	case 'T':
		p.sess.Transpose(-1)
	}
	return true
}

func (p *player) changeSpeed(delta float64) {
	speed := p.sess.View().Params.Speed + delta
	speed = math.Round(speed*100) / 100
	p.sess.SetParams(session.ParamsPatch{Speed: &speed})
}

// ========== 绘制 ==========

var (
	styleDefault = tcell.StyleDefault
	styleTitle   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleCurrent = tcell.StyleDefault.Background(tcell.ColorDarkGreen).Foreground(tcell.ColorWhite)
	styleLoop    = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleError   = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

func (p *player) draw() {
	v := p.sess.View()
	p.screen.Clear()
	w, h := p.screen.Size()

	g := v.GridConfig
	p.text(0, 0, styleTitle, v.Name)
	p.text(0, 1, styleDefault, fmt.Sprintf("%s  %s / %s  速度 %.2fx  移调 %+.0f  %.0f BPM %d/%d  %s",
		stateLabel(v.Transport.State), formatClock(v.Transport.Position), formatClock(v.Transport.Duration),
		v.Params.Speed, v.Params.Detune, g.BPM, g.TimeSigTop, g.TimeSigBottom, g.KeySignature))

	row := 2
	if loop := loopLabel(v.Transport.Loop); loop != "" {
		p.text(0, row, styleLoop, loop)
	}
	flags := ""
	if v.Params.Metronome {
		flags += "节拍器  "
	}
	if v.Dirty {
		flags += "未保存"
	}
	p.text(w-runewidth.StringWidth(flags)-1, row, styleDim, flags)

	// 当前小节
	current := 0
	if pos, ok := v.Layout.Position(v.Transport.Position, g); ok {
		current = pos.Measure
		for _, m := range v.Measures {
			if m.Index == pos.Measure {
				p.text(0, 4, styleTitle, fmt.Sprintf("第 %d 小节  第 %d 拍", pos.Measure, pos.Beat))
				p.text(0, 5, styleDefault, m.Chords)
				p.text(0, 6, styleDim, m.Lyrics)
				break
			}
		}
	} else if !v.Audio.IsLoaded {
		p.text(0, 4, styleDim, "未加载音频")
	}

	// 小节网格
	cols := w / cellWidth
	if cols < 1 {
		cols = 1
	}
	top := 8
	rows := h - top - 2
	if rows < 1 {
		rows = 1
	}
	first := 0
	if current > 0 {
		first = ((current - 1) / cols) * cols
		if first >= rows*cols {
			first -= (rows - 1) * cols
		}
	}
	for i := first; i < len(v.Measures) && (i-first)/cols < rows; i++ {
		m := v.Measures[i]
		x := ((i - first) % cols) * cellWidth
		y := top + (i-first)/cols
		style := styleDefault
		if m.Index == current {
			style = styleCurrent
		}
		label := fmt.Sprintf("%3d %s", m.Index, m.Chords)
		if m.Duration != nil {
			label += "~"
		}
		p.text(x, y, style, truncate(label, cellWidth-1))
	}

	switch {
	case v.SaveError != "":
		p.text(0, h-2, styleError, "保存失败: "+v.SaveError)
	case v.Audio.Error != "":
		p.text(0, h-2, styleError, "音频: "+v.Audio.Error)
	case p.msg != "":
		p.text(0, h-2, styleDim, p.msg)
	}
	p.text(0, h-1, styleDim, "空格 播放  ←/→ 小节  [ ] l 循环  +/- 速度  m 节拍器  u/r 撤销/重做  t/T 移调  q 退出")
	p.screen.Show()
}

// text 按显示宽度写入一行文字
func (p *player) text(x, y int, style tcell.Style, s string) {
	w, _ := p.screen.Size()
	for _, r := range s {
		if x >= w {
			return
		}
		p.screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}

func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

func stateLabel(s transport.State) string {
	switch s {
	case transport.Playing:
		return "▶ 播放"
	case transport.PlayingLooped:
		return "▶ 循环"
	case transport.PlayingRegion:
		return "▶ 区间"
	}
	return "■ 停止"
}

func loopLabel(l model.LoopState) string {
	if l.Start == nil && l.End == nil {
		return ""
	}
	start, end := "--", "--"
	if l.Start != nil {
		start = formatClock(*l.Start)
	}
	if l.End != nil {
		end = formatClock(*l.End)
	}
	state := "关"
	if l.Active {
		state = "开"
	}
	return fmt.Sprintf("循环 [%s - %s] %s", start, end, state)
}

// formatClock 秒数格式化为 m:ss.s
func formatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	mins := int(seconds) / 60
	return fmt.Sprintf("%d:%04.1f", mins, seconds-float64(mins*60))
}
