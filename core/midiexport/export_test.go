package midiexport

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/model"
)

func exportAndRead(t *testing.T, measures []model.Measure, cfg model.GridConfig) *smf.SMF {
	t.Helper()
	var buf bytes.Buffer
	if err := Export(&buf, measures, cfg); err != nil {
		t.Fatal(err)
	}
	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	return s
}

func TestExportTracks(t *testing.T) {
	measures := []model.Measure{
		{Index: 1, Chords: "C G", Lyrics: "one"},
		{Index: 2, Chords: "Am", Duration: model.Float(4.0)},
		{Index: 3, Chords: "F", Lyrics: "three"},
	}
	s := exportAndRead(t, measures, model.DefaultGridConfig())

	if len(s.Tracks) != 4 {
		t.Fatalf("tracks = %d, want 4", len(s.Tracks))
	}
	if tf, ok := s.TimeFormat.(smf.MetricTicks); !ok || tf != TicksPerQuarter {
		t.Errorf("time format = %v", s.TimeFormat)
	}

	var tempos []float64
	for _, ev := range s.Tracks[0] {
		var bpm float64
		if ev.Message.GetMetaTempo(&bpm) {
			tempos = append(tempos, bpm)
		}
	}
	want := []float64{120, 60, 120}
	if len(tempos) != len(want) {
		t.Fatalf("tempos = %v, want %v", tempos, want)
	}
	for i := range want {
		if math.Abs(tempos[i]-want[i]) > 0.01 {
			t.Errorf("tempo %d = %v, want %v", i, tempos[i], want[i])
		}
	}

	var lyrics []string
	for _, ev := range s.Tracks[2] {
		var text string
		if ev.Message.GetMetaLyric(&text) {
			lyrics = append(lyrics, text)
		}
	}
	if len(lyrics) != 2 || lyrics[0] != "one" || lyrics[1] != "three" {
		t.Errorf("lyrics = %v", lyrics)
	}

	var chords []string
	for _, ev := range s.Tracks[1] {
		var text string
		if ev.Message.GetMetaText(&text) {
			chords = append(chords, text)
		}
	}
	if len(chords) != 4 {
		t.Errorf("chords = %v", chords)
	}

	ons, accents := 0, 0
	for _, ev := range s.Tracks[3] {
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) {
			ons++
			if ch != clickChannel {
				t.Errorf("click on channel %d", ch)
			}
			if key == clickAccentKey {
				accents++
			}
		}
	}
	if ons != 12 || accents != 3 {
		t.Errorf("clicks = %d (accents %d), want 12 (3)", ons, accents)
	}
}

func TestMeasureTempo(t *testing.T) {
	cfg := model.GridConfig{BPM: 60, TimeSigTop: 6, TimeSigBottom: 8, BeatUnit: model.BeatUnitDottedQuarter}
	if got := MeasureTempo(grid.Slot{Duration: 2}, cfg); got != 90 {
		t.Errorf("tempo = %v, want 90", got)
	}
	// 标准时长 2s，覆盖为 4s 时速度减半
	if got := MeasureTempo(grid.Slot{Duration: 4, Rubato: true}, cfg); math.Abs(got-45) > 1e-9 {
		t.Errorf("rubato tempo = %v, want 45", got)
	}
}

func TestMeasureTicks(t *testing.T) {
	cases := map[[2]int]uint32{
		{4, 4}: 1920,
		{3, 4}: 1440,
		{6, 8}: 1440,
		{7, 8}: 1680,
	}
	for sig, want := range cases {
		got := measureTicks(model.GridConfig{TimeSigTop: sig[0], TimeSigBottom: sig[1]})
		if got != want {
			t.Errorf("%d/%d = %d, want %d", sig[0], sig[1], got, want)
		}
	}
}

func TestExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, nil, model.DefaultGridConfig()); !errors.Is(err, model.ErrValidation) {
		t.Errorf("err = %v", err)
	}
}
