package midiexport

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/core/theory"
	"github.com/pbrusco/musicians-helper/model"
)

const (
	// TicksPerQuarter MIDI 分辨率
	TicksPerQuarter = 480

	clickChannel   = 9  // GM 打击乐通道（从 0 计）
	clickKey       = 77 // Low Wood Block
	clickAccentKey = 76 // Hi Wood Block
	clickVelocity  = 90
	accentVelocity = 120
	clickTicks     = 60
)

// timedEvent 绝对时间（tick）上的事件
type timedEvent struct {
	tick uint32
	msg  smf.Message
}

// Export 把小节网格写成 SMF1
// 轨道：速度轨（拍号、调号、每小节速度）、和弦、歌词、节拍器（通道 10）。
// 第一小节从 tick 0 开始，网格偏移不写入。
func Export(w io.Writer, measures []model.Measure, cfg model.GridConfig) error {
	s, err := Build(measures, cfg)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}

// Build 构建 SMF 但不写出
func Build(measures []model.Measure, cfg model.GridConfig) (*smf.SMF, error) {
	cfg = grid.Sanitize(cfg)
	tl := grid.Build(measures, cfg)
	if len(tl) == 0 {
		return nil, fmt.Errorf("no measures to export: %w", model.ErrValidation)
	}

	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	length := measureTicks(cfg)
	starts := make([]uint32, len(tl))
	for i := range tl {
		starts[i] = uint32(i) * length
	}

	s.Add(conductorTrack(tl, cfg, starts))
	s.Add(finish("Chords", chordEvents(measures, tl, starts, length)))
	s.Add(finish("Lyrics", lyricEvents(measures, tl, starts)))
	s.Add(finish("Click", clickEvents(tl, cfg, starts, length)))
	return s, nil
}

// measureTicks 记谱小节长度（tick）
func measureTicks(cfg model.GridConfig) uint32 {
	quarters := float64(cfg.TimeSigTop) * 4 / float64(cfg.TimeSigBottom)
	return uint32(math.Round(quarters * TicksPerQuarter))
}

// MeasureTempo 小节的四分音符速度，自由速度小节按覆盖时长换算
func MeasureTempo(slot grid.Slot, cfg model.GridConfig) float64 {
	base := grid.EffectiveBPM(cfg)
	if !slot.Rubato || slot.Duration <= 0 {
		return base
	}
	return base * grid.StandardDuration(cfg) / slot.Duration
}

func conductorTrack(tl grid.Timeline, cfg model.GridConfig, starts []uint32) smf.Track {
	events := []timedEvent{
		{0, smf.Message(smf.MetaTrackSequenceName("Conductor"))},
		{0, smf.Message(smf.MetaTimeSig(uint8(cfg.TimeSigTop), uint8(cfg.TimeSigBottom), 24, 8))},
	}
	if fifths, minor, ok := theory.KeyToFifths(cfg.KeySignature); ok {
		events = append(events, timedEvent{0, keySignature(fifths, minor)})
	}

	last := -1.0
	for i, slot := range tl {
		tempo := MeasureTempo(slot, cfg)
		if math.Abs(tempo-last) < 1e-9 {
			continue
		}
		events = append(events, timedEvent{starts[i], smf.Message(smf.MetaTempo(tempo))})
		last = tempo
	}
	return toTrack(events)
}

// keySignature 由五度圈位置生成调号事件
func keySignature(fifths int, minor bool) smf.Message {
	name := theory.FifthsToKey(fifths, minor)
	root, _ := theory.NoteIndex(strings.TrimSuffix(name, "m"))
	num := fifths
	if num < 0 {
		num = -num
	}
	return smf.Message(smf.MetaKey(uint8(root), !minor, uint8(num), fifths < 0))
}

// chordEvents 每小节的和弦按出现顺序均分小节
func chordEvents(measures []model.Measure, tl grid.Timeline, starts []uint32, length uint32) []timedEvent {
	byIndex := indexMeasures(measures)
	var events []timedEvent
	for i, slot := range tl {
		chords := strings.Fields(byIndex[slot.Index].Chords)
		for k, c := range chords {
			at := starts[i] + uint32(k)*length/uint32(len(chords))
			events = append(events, timedEvent{at, smf.Message(smf.MetaText(c))})
		}
	}
	return events
}

func lyricEvents(measures []model.Measure, tl grid.Timeline, starts []uint32) []timedEvent {
	byIndex := indexMeasures(measures)
	var events []timedEvent
	for i, slot := range tl {
		if lyrics := strings.TrimSpace(byIndex[slot.Index].Lyrics); lyrics != "" {
			events = append(events, timedEvent{starts[i], smf.Message(smf.MetaLyric(lyrics))})
		}
	}
	return events
}

// clickEvents 节拍器点击，重拍使用高音木鱼
func clickEvents(tl grid.Timeline, cfg model.GridConfig, starts []uint32, length uint32) []timedEvent {
	pos := make(map[int]int, len(tl))
	for i, slot := range tl {
		pos[slot.Index] = i
	}

	var events []timedEvent
	for _, c := range grid.Clicks(tl, cfg, tl[0].Start, tl.End()) {
		i := pos[c.Measure]
		slot := tl[i]
		frac := (c.Time - slot.Start) / slot.Duration
		at := starts[i] + uint32(math.Round(frac*float64(length)))

		key, vel := uint8(clickKey), uint8(clickVelocity)
		if c.Downbeat {
			key, vel = clickAccentKey, accentVelocity
		}
		events = append(events,
			timedEvent{at, smf.Message(midi.NoteOn(clickChannel, key, vel))},
			timedEvent{at + clickTicks, smf.Message(midi.NoteOff(clickChannel, key))},
		)
	}
	return events
}

func indexMeasures(measures []model.Measure) map[int]model.Measure {
	out := make(map[int]model.Measure, len(measures))
	for _, m := range measures {
		out[m.Index] = m
	}
	return out
}

// finish 加上轨道名并转换为增量时间
func finish(name string, events []timedEvent) smf.Track {
	all := append([]timedEvent{{0, smf.Message(smf.MetaTrackSequenceName(name))}}, events...)
	return toTrack(all)
}

// toTrack 按时间稳定排序后转换为增量时间，并以 EOT 结尾
func toTrack(events []timedEvent) smf.Track {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].tick < events[j].tick
	})
	track := smf.Track{}
	var lastTick uint32
	for _, e := range events {
		track = append(track, smf.Event{Delta: e.tick - lastTick, Message: e.msg})
		lastTick = e.tick
	}
	track = append(track, smf.Event{Delta: 0, Message: smf.EOT})
	return track
}
