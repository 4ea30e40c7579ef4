package grid

import (
	"math"
	"testing"

	"github.com/pbrusco/musicians-helper/model"
)

const eps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func blankMeasures(n int) []model.Measure {
	measures := make([]model.Measure, n)
	for i := range measures {
		measures[i] = model.Measure{Index: i + 1}
	}
	return measures
}

func TestStandardDurationQuarter(t *testing.T) {
	cfg := model.GridConfig{BPM: 120, TimeSigTop: 4, TimeSigBottom: 4, BeatUnit: model.BeatUnitQuarter}
	if got := StandardDuration(cfg); !almostEqual(got, 2.0) {
		t.Errorf("Expected 2.0s, got %v", got)
	}
}

// eighth 计数时四分音符速度减半，dotted-quarter 时乘 1.5
func TestStandardDurationBeatUnits(t *testing.T) {
	tests := []struct {
		name     string
		cfg      model.GridConfig
		duration float64
		clicks   int
	}{
		{"4/4 quarter", model.GridConfig{BPM: 120, TimeSigTop: 4, TimeSigBottom: 4, BeatUnit: model.BeatUnitQuarter}, 2.0, 4},
		{"4/4 eighth", model.GridConfig{BPM: 120, TimeSigTop: 4, TimeSigBottom: 4, BeatUnit: model.BeatUnitEighth}, 4.0, 8},
		{"6/8 dotted", model.GridConfig{BPM: 120, TimeSigTop: 6, TimeSigBottom: 8, BeatUnit: model.BeatUnitDottedQuarter}, 1.0, 2},
		{"6/8 eighth", model.GridConfig{BPM: 120, TimeSigTop: 6, TimeSigBottom: 8, BeatUnit: model.BeatUnitEighth}, 3.0, 6},
		{"3/4 quarter", model.GridConfig{BPM: 90, TimeSigTop: 3, TimeSigBottom: 4, BeatUnit: model.BeatUnitQuarter}, 2.0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StandardDuration(tt.cfg); !almostEqual(got, tt.duration) {
				t.Errorf("duration: expected %v, got %v", tt.duration, got)
			}
			if got := ClicksPerMeasure(tt.cfg); got != tt.clicks {
				t.Errorf("clicks: expected %d, got %d", tt.clicks, got)
			}
		})
	}
}

func TestStandardDurationInvalidIsTotal(t *testing.T) {
	if got := StandardDuration(model.GridConfig{}); got != 0 {
		t.Errorf("Expected 0 for zero config, got %v", got)
	}
	cfg := Sanitize(model.GridConfig{BPM: -5, BeatUnit: "whole", Offset: -1})
	if cfg.BPM != DefaultBPM || cfg.TimeSigTop != 4 || cfg.TimeSigBottom != 4 {
		t.Errorf("Unexpected sanitized config: %+v", cfg)
	}
	if cfg.BeatUnit != model.BeatUnitQuarter || cfg.Offset != 0 || cfg.KeySignature != "C" {
		t.Errorf("Unexpected sanitized config: %+v", cfg)
	}
	if got := StandardDuration(cfg); !almostEqual(got, 2.0) {
		t.Errorf("Expected 2.0 after sanitize, got %v", got)
	}
}

func TestLayoutTenMeasures(t *testing.T) {
	cfg := model.GridConfig{BPM: 120, TimeSigTop: 4, TimeSigBottom: 4, Offset: 0, BeatUnit: model.BeatUnitQuarter}
	tl := Build(blankMeasures(10), cfg)

	if len(tl) != 10 {
		t.Fatalf("Expected 10 slots, got %d", len(tl))
	}
	if !almostEqual(tl[9].Start, 18.0) {
		t.Errorf("Expected layout[9].start == 18, got %v", tl[9].Start)
	}
	if !almostEqual(tl[9].Duration, 2.0) {
		t.Errorf("Expected layout[9].duration == 2, got %v", tl[9].Duration)
	}
}

func TestLayoutContiguousWithRubato(t *testing.T) {
	cfg := model.GridConfig{BPM: 100, TimeSigTop: 3, TimeSigBottom: 4, Offset: 1.25, BeatUnit: model.BeatUnitQuarter}
	measures := blankMeasures(6)
	measures[1].Duration = model.Float(3.3)
	measures[4].Duration = model.Float(0.7)

	tl := Build(measures, cfg)
	if tl[0].Start != cfg.Offset {
		t.Errorf("Expected first start %v, got %v", cfg.Offset, tl[0].Start)
	}
	for i := 0; i+1 < len(tl); i++ {
		if math.Abs(tl[i].Start+tl[i].Duration-tl[i+1].Start) > eps {
			t.Errorf("Gap between slot %d and %d", i, i+1)
		}
	}
	if !tl[1].Rubato || tl[1].Duration != 3.3 {
		t.Errorf("Expected rubato slot with 3.3s, got %+v", tl[1])
	}
	if tl[2].Rubato {
		t.Errorf("Slot 3 should use standard duration")
	}
}

func TestLayoutSortsByIndex(t *testing.T) {
	cfg := model.DefaultGridConfig()
	measures := []model.Measure{{Index: 3}, {Index: 1}, {Index: 2, Duration: model.Float(5)}}
	tl := Build(measures, cfg)
	for i, slot := range tl {
		if slot.Index != i+1 {
			t.Errorf("Expected index %d at %d, got %d", i+1, i, slot.Index)
		}
	}
	if !almostEqual(tl[2].Start, 7.0) {
		t.Errorf("Expected slot 3 to start at 7, got %v", tl[2].Start)
	}
}

func TestTimelineQueries(t *testing.T) {
	cfg := model.DefaultGridConfig()
	cfg.Offset = 0.5
	tl := Build(blankMeasures(4), cfg)

	slot, ok := tl.MeasureAt(2.6)
	if !ok || slot.Index != 2 {
		t.Errorf("Expected measure 2 at 2.6s, got %+v ok=%v", slot, ok)
	}
	if _, ok := tl.MeasureAt(0.2); ok {
		t.Errorf("Expected no measure before offset")
	}
	if _, ok := tl.MeasureAt(tl.End()); ok {
		t.Errorf("Expected no measure at the very end")
	}

	start, end, ok := tl.Range(3, 2)
	if !ok || !almostEqual(start, 2.5) || !almostEqual(end, 6.5) {
		t.Errorf("Unexpected range %v-%v ok=%v", start, end, ok)
	}
	if _, _, ok := tl.Range(1, 9); ok {
		t.Errorf("Expected range with unknown index to fail")
	}

	pos, ok := tl.Position(3.3, cfg)
	if !ok || pos.Measure != 2 || pos.Beat != 2 || !almostEqual(pos.Fraction, 0.6) {
		t.Errorf("Unexpected position %+v", pos)
	}
}

func TestDragBoundaryFloor(t *testing.T) {
	tl := Build(blankMeasures(3), model.DefaultGridConfig())

	d, ok := tl.DragBoundary(2, 4.75)
	if !ok || !almostEqual(d, 2.75) {
		t.Errorf("Expected 2.75, got %v ok=%v", d, ok)
	}
	if _, ok := tl.DragBoundary(2, 2.05); ok {
		t.Errorf("Expected drag below floor to be rejected")
	}
	if _, ok := tl.DragBoundary(2, 1.0); ok {
		t.Errorf("Expected negative duration to be rejected")
	}
	if _, ok := tl.DragBoundary(7, 20); ok {
		t.Errorf("Expected unknown measure to be rejected")
	}
}

func TestClicks(t *testing.T) {
	cfg := model.DefaultGridConfig()
	measures := blankMeasures(3)
	measures[1].Duration = model.Float(4.0)
	tl := Build(measures, cfg)

	clicks := Clicks(tl, cfg, 0, tl.End())
	if len(clicks) != 12 {
		t.Fatalf("Expected 12 clicks, got %d", len(clicks))
	}
	downbeats := 0
	for _, c := range clicks {
		if c.Downbeat {
			downbeats++
		}
	}
	if downbeats != 3 {
		t.Errorf("Expected 3 downbeats, got %d", downbeats)
	}
	// 自由速度小节的拍长按比例放大为 1 秒
	if !almostEqual(clicks[5].Time, 3.0) || clicks[5].Measure != 2 {
		t.Errorf("Unexpected rubato click %+v", clicks[5])
	}

	window := Clicks(tl, cfg, 0.6, 1.6)
	if len(window) != 2 || !almostEqual(window[0].Time, 1.0) {
		t.Errorf("Unexpected window clicks %+v", window)
	}
}

func TestMeasuresToFill(t *testing.T) {
	cfg := model.DefaultGridConfig()
	cfg.Offset = 1
	if got := MeasuresToFill(cfg, 20); got != 10 {
		t.Errorf("Expected 10, got %d", got)
	}
	if got := MeasuresToFill(cfg, 0.5); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
}

func TestSanitizeClampsTempoAndOffset(t *testing.T) {
	cases := []struct {
		name   string
		in     model.GridConfig
		bpm    float64
		offset float64
	}{
		{"huge bpm", model.GridConfig{BPM: 1e15, TimeSigTop: 4, TimeSigBottom: 4}, MaxBPM, 0},
		{"tiny bpm", model.GridConfig{BPM: 0.001, TimeSigTop: 4, TimeSigBottom: 4}, MinBPM, 0},
		{"infinite offset", model.GridConfig{BPM: 90, Offset: math.Inf(1)}, 90, 0},
		{"valid", model.GridConfig{BPM: 240, Offset: 1.5}, 240, 1.5},
	}
	for _, c := range cases {
		cfg := Sanitize(c.in)
		if cfg.BPM != c.bpm || cfg.Offset != c.offset {
			t.Errorf("%s: bpm=%v offset=%v, want %v and %v", c.name, cfg.BPM, cfg.Offset, c.bpm, c.offset)
		}
	}
}

func TestMeasuresToFillIsCapped(t *testing.T) {
	cfg := Sanitize(model.GridConfig{BPM: 1e15, TimeSigTop: 4, TimeSigBottom: 4})
	if got := MeasuresToFill(cfg, 180); got != 750 {
		t.Errorf("Expected 750 at max tempo, got %d", got)
	}
	if got := MeasuresToFill(cfg, 3600); got != MaxMeasures {
		t.Errorf("Expected cap %d, got %d", MaxMeasures, got)
	}
	raw := model.GridConfig{BPM: 1e15, TimeSigTop: 4, TimeSigBottom: 4, BeatUnit: model.BeatUnitQuarter}
	if got := MeasuresToFill(raw, 180); got != MaxMeasures {
		t.Errorf("Expected cap for unsanitized tempo, got %d", got)
	}
	if got := MeasuresToFill(cfg, math.Inf(1)); got != MaxMeasures {
		t.Errorf("Expected cap for infinite duration, got %d", got)
	}
}
