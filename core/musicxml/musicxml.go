package musicxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/core/theory"
	"github.com/pbrusco/musicians-helper/model"
)

const (
	version = "4.0"
	partID  = "P1"
	docType = `<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 4.0 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">` + "\n"

	tempoEpsilon = 1e-6
)

// ========== 导出 ==========

// Export 将小节列表导出为单声部 MusicXML
// 每个小节一个 <measure>：和弦为 <harmony>，歌词挂在整小节休止符上；
// 自由速度小节用 <sound tempo> 表达，使其记谱长度恰好持续覆盖时长。
// 无法解析的和弦记号不导出。
func Export(measures []model.Measure, cfg model.GridConfig, title string) ([]byte, error) {
	cfg = grid.Sanitize(cfg)
	tl := grid.Build(measures, cfg)

	divisions, length := measureLength(cfg)
	baseTempo := grid.EffectiveBPM(cfg)
	std := grid.StandardDuration(cfg)

	doc := scorePartwise{
		Version: version,
		PartList: partList{ScoreParts: []scorePart{
			{ID: partID, Name: "Lead Sheet"},
		}},
	}
	if title != "" {
		doc.Work = &work{Title: title}
	}

	p := part{ID: partID}
	for i, slot := range tl {
		m := measures[indexOf(measures, slot.Index)]
		out := measure{Number: strconv.Itoa(i + 1)}

		if i == 0 {
			out.Attributes = firstAttributes(cfg, divisions)
			out.Directions = append(out.Directions, direction{
				Placement:     "above",
				DirectionType: []directionType{{Metronome: metronomeFor(cfg)}},
				Sound:         &sound{Tempo: tempoFor(slot, baseTempo, std)},
			})
		} else if slot.Rubato {
			out.Directions = append(out.Directions, direction{
				Sound: &sound{Tempo: tempoFor(slot, baseTempo, std)},
			})
		} else if tl[i-1].Rubato {
			// 自由速度小节之后恢复基础速度
			out.Directions = append(out.Directions, direction{
				Sound: &sound{Tempo: baseTempo},
			})
		}

		for _, token := range strings.Fields(m.Chords) {
			if h, ok := harmonyFor(token); ok {
				out.Harmonies = append(out.Harmonies, h)
			}
		}

		n := note{Rest: &rest{Measure: "yes"}, Duration: length}
		if lyrics := strings.TrimSpace(m.Lyrics); lyrics != "" {
			n.Lyrics = []lyric{{Number: "1", Text: lyrics}}
		}
		out.Notes = []note{n}
		p.Measures = append(p.Measures, out)
	}
	doc.Parts = []part{p}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(docType)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode musicxml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// measureLength 返回 divisions 以及整小节长度（以 divisions 计）
func measureLength(cfg model.GridConfig) (divisions, length int) {
	divisions = 1
	if cfg.TimeSigBottom > 4 {
		divisions = cfg.TimeSigBottom / 4
	}
	length = cfg.TimeSigTop * divisions * 4 / cfg.TimeSigBottom
	if length < 1 {
		length = 1
	}
	return divisions, length
}

func firstAttributes(cfg model.GridConfig, divisions int) *attributes {
	fifths, minor, ok := theory.KeyToFifths(cfg.KeySignature)
	if !ok {
		fifths, minor = 0, false
	}
	mode := "major"
	if minor {
		mode = "minor"
	}
	return &attributes{
		Divisions: divisions,
		Key:       &key{Fifths: fifths, Mode: mode},
		Time: &timeSig{
			Beats:    strconv.Itoa(cfg.TimeSigTop),
			BeatType: strconv.Itoa(cfg.TimeSigBottom),
		},
		Clef: &clef{Sign: "G", Line: 2},
	}
}

func metronomeFor(cfg model.GridConfig) *metronome {
	m := &metronome{
		BeatUnit:  "quarter",
		PerMinute: strconv.FormatFloat(cfg.BPM, 'f', -1, 64),
	}
	switch cfg.BeatUnit {
	case model.BeatUnitEighth:
		m.BeatUnit = "eighth"
	case model.BeatUnitDottedQuarter:
		m.BeatUnitDot = &struct{}{}
	}
	return m
}

// tempoFor 小节的四分音符速度；自由速度小节按覆盖时长换算
func tempoFor(slot grid.Slot, base, std float64) float64 {
	if !slot.Rubato || slot.Duration <= 0 {
		return base
	}
	return base * std / slot.Duration
}

func harmonyFor(token string) (harmony, bool) {
	c, ok := theory.ParseChord(token)
	if !ok {
		return harmony{}, false
	}
	step, alter := splitNote(c.Root)
	h := harmony{
		Root: root{Step: step, Alter: alter},
		Kind: kindFor(c.Quality),
	}
	if c.Bass != "" {
		bs, ba := splitNote(c.Bass)
		h.Bass = &bass{Step: bs, Alter: ba}
	}
	return h, true
}

// splitNote "Bb" -> ("B", -1)
func splitNote(name string) (string, float64) {
	if len(name) < 2 {
		return name, 0
	}
	switch name[1] {
	case '#':
		return name[:1], 1
	case 'b':
		return name[:1], -1
	}
	return name[:1], 0
}

func indexOf(measures []model.Measure, index int) int {
	for i, m := range measures {
		if m.Index == index {
			return i
		}
	}
	return 0
}

// ========== 导入 ==========

// Import 解析 MusicXML，只读取第一个声部
// 文档无法解析或没有小节时返回 ErrValidation，不做部分导入。
func Import(data []byte) ([]model.Measure, model.GridConfig, error) {
	var doc scorePartwise
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, model.GridConfig{}, fmt.Errorf("parse musicxml: %v: %w", err, model.ErrValidation)
	}
	if len(doc.Parts) == 0 || len(doc.Parts[0].Measures) == 0 {
		return nil, model.GridConfig{}, fmt.Errorf("musicxml has no measures: %w", model.ErrValidation)
	}
	src := doc.Parts[0].Measures

	cfg, firstTempo, haveMetronome := readHeader(src[0])
	if !haveMetronome && firstTempo > 0 {
		cfg.BPM = firstTempo
		cfg.BeatUnit = model.BeatUnitQuarter
	}
	cfg = grid.Sanitize(cfg)

	base := grid.EffectiveBPM(cfg)
	std := grid.StandardDuration(cfg)

	measures := make([]model.Measure, 0, len(src))
	current := base
	for i, m := range src {
		for _, d := range m.Directions {
			if d.Sound != nil && d.Sound.Tempo > 0 {
				current = d.Sound.Tempo
			}
		}
		out := model.Measure{Index: i + 1}

		var chords []string
		for _, h := range m.Harmonies {
			chords = append(chords, symbolFor(h))
		}
		out.Chords = strings.Join(chords, " ")

		var words []string
		for _, n := range m.Notes {
			for _, l := range n.Lyrics {
				if t := strings.TrimSpace(l.Text); t != "" {
					words = append(words, t)
				}
			}
		}
		out.Lyrics = strings.Join(words, " ")

		if math.Abs(current-base) > tempoEpsilon {
			d := std * base / current
			if d >= grid.MinMeasureDuration {
				out.Duration = model.Float(d)
			}
		}
		measures = append(measures, out)
	}
	return measures, cfg, nil
}

// readHeader 从第一个小节读取拍号、调号和速度
func readHeader(first measure) (cfg model.GridConfig, firstTempo float64, haveMetronome bool) {
	cfg = model.DefaultGridConfig()
	if a := first.Attributes; a != nil {
		if a.Time != nil {
			if top, err := strconv.Atoi(strings.TrimSpace(a.Time.Beats)); err == nil && top > 0 {
				cfg.TimeSigTop = top
			}
			if bottom, err := strconv.Atoi(strings.TrimSpace(a.Time.BeatType)); err == nil && bottom > 0 {
				cfg.TimeSigBottom = bottom
			}
		}
		if a.Key != nil {
			cfg.KeySignature = theory.FifthsToKey(a.Key.Fifths, a.Key.Mode == "minor")
		}
	}
	for _, d := range first.Directions {
		for _, dt := range d.DirectionType {
			mt := dt.Metronome
			if mt == nil || haveMetronome {
				continue
			}
			if bpm, err := strconv.ParseFloat(strings.TrimSpace(mt.PerMinute), 64); err == nil && bpm > 0 {
				cfg.BPM = bpm
				cfg.BeatUnit = beatUnitFor(mt)
				haveMetronome = true
			}
		}
		if d.Sound != nil && d.Sound.Tempo > 0 && firstTempo == 0 {
			firstTempo = d.Sound.Tempo
		}
	}
	return cfg, firstTempo, haveMetronome
}

func beatUnitFor(m *metronome) model.BeatUnit {
	switch strings.TrimSpace(m.BeatUnit) {
	case "eighth":
		return model.BeatUnitEighth
	case "quarter":
		if m.BeatUnitDot != nil {
			return model.BeatUnitDottedQuarter
		}
	}
	return model.BeatUnitQuarter
}

func symbolFor(h harmony) string {
	s := joinNote(h.Root.Step, h.Root.Alter) + qualityFor(h.Kind)
	if h.Bass != nil && h.Bass.Step != "" {
		s += "/" + joinNote(h.Bass.Step, h.Bass.Alter)
	}
	return s
}

func joinNote(step string, alter float64) string {
	step = strings.ToUpper(strings.TrimSpace(step))
	switch {
	case alter < 0:
		return step + "b"
	case alter > 0:
		return step + "#"
	}
	return step
}
