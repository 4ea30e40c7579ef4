package theory

import "testing"

func TestTransposeChordExamples(t *testing.T) {
	tests := []struct {
		chord     string
		semitones int
		want      string
	}{
		{"Am7", 3, "Cm7"},
		{"F#/A#", -1, "F/A"},
		{"Bb", 2, "C"},
		{"Bbmaj7", 1, "Bmaj7"},
		{"Eb", 1, "E"},
		{"Db", -1, "C"},
		{"Ebm7b5", 2, "Fm7b5"},
		{"Gdim", 1, "G#dim"},
		{"Caug/E", 5, "Faug/A"},
		{"B", 1, "C"},
		{"C", -1, "B"},
		{"G7sus4", 14, "A7sus4"},
		{"N.C.", 3, "N.C."},
		{"x", 2, "x"},
		{"%", 2, "%"},
	}

	for _, tt := range tests {
		if got := TransposeChord(tt.chord, tt.semitones); got != tt.want {
			t.Errorf("TransposeChord(%q, %d) = %q, want %q", tt.chord, tt.semitones, got, tt.want)
		}
	}
}

func TestTransposeChordRoundTrip(t *testing.T) {
	suffixes := []string{"", "m", "7", "m7", "maj7", "dim", "aug", "sus2", "6/9"}
	for _, root := range sharpNames {
		for _, suffix := range suffixes {
			for _, bass := range []string{"", "/E", "/G#", "/C"} {
				chord := root + suffix + bass
				if suffix == "6/9" && bass != "" {
					continue
				}
				for k := -24; k <= 24; k++ {
					up := TransposeChord(chord, k)
					if back := TransposeChord(up, -k); back != chord {
						t.Fatalf("Round trip failed for %q k=%d: %q -> %q", chord, k, up, back)
					}
				}
			}
		}
	}
}

// 降号拼写经过自然音后按升号表拼写，往返后保持等音
func TestTransposeFlatRoundTripIsEnharmonic(t *testing.T) {
	for _, root := range flatNames {
		for k := -13; k <= 13; k++ {
			back := TransposeNote(TransposeNote(root, k), -k)
			a, _ := NoteIndex(root)
			b, ok := NoteIndex(back)
			if !ok || a != b {
				t.Fatalf("Pitch class changed for %s k=%d: %s", root, k, back)
			}
		}
	}
}

func TestTransposeFlatChordSpelling(t *testing.T) {
	if got := TransposeChord("Bb7", 1); got != "B7" {
		t.Errorf("Bb7 +1 = %s", got)
	}
	if got := TransposeChord("Bb7", 3); got != "Db7" {
		t.Errorf("Bb7 +3 = %s", got)
	}
	// 经过本位音 C 后降号丢失
	if got := TransposeChord(TransposeChord("Bb7", 2), -2); got != "A#7" {
		t.Errorf("flat round trip = %s", got)
	}
}

func TestTransposeChordLinePreservesSpacing(t *testing.T) {
	got := TransposeChordLine("C  G/B   Am7 | F", 2)
	want := "D  A/C#   Bm7 | G"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := TransposeChordLine("  ", 3); got != "  " {
		t.Errorf("Blank line changed: %q", got)
	}
}

func TestTransposeKey(t *testing.T) {
	tests := []struct {
		key  string
		k    int
		want string
	}{
		{"C", 2, "D"},
		{"Am", 3, "Cm"},
		{"Bbm", 1, "Bm"},
		{"F#", -1, "F"},
		{"Eb", -1, "D"},
		{"??", 4, "??"},
	}
	for _, tt := range tests {
		if got := TransposeKey(tt.key, tt.k); got != tt.want {
			t.Errorf("TransposeKey(%q, %d) = %q, want %q", tt.key, tt.k, got, tt.want)
		}
	}
}

func TestCircleOfFifths(t *testing.T) {
	tests := []struct {
		fifths int
		minor  bool
		key    string
	}{
		{0, false, "C"},
		{0, true, "Am"},
		{1, false, "G"},
		{1, true, "Em"},
		{-1, false, "F"},
		{-1, true, "Dm"},
		{-3, true, "Cm"},
		{6, true, "D#m"},
		{-6, true, "Ebm"},
		{-7, false, "Cb"},
		{-7, true, "Abm"},
		{7, false, "C#"},
		{7, true, "A#m"},
	}
	for _, tt := range tests {
		if got := FifthsToKey(tt.fifths, tt.minor); got != tt.key {
			t.Errorf("FifthsToKey(%d, %v) = %q, want %q", tt.fifths, tt.minor, got, tt.key)
		}
		f, minor, ok := KeyToFifths(tt.key)
		if !ok || f != tt.fifths || minor != tt.minor {
			t.Errorf("KeyToFifths(%q) = %d,%v,%v want %d,%v", tt.key, f, minor, ok, tt.fifths, tt.minor)
		}
	}
}

func TestKeyToFifthsEnharmonic(t *testing.T) {
	// G# 大调不在表中，按音高类匹配到 Ab（4 个降号）
	f, minor, ok := KeyToFifths("G#")
	if !ok || minor || f != -4 {
		t.Errorf("Expected G# -> -4, got %d %v %v", f, minor, ok)
	}
	if _, _, ok := KeyToFifths("H"); ok {
		t.Errorf("Expected unknown key to fail")
	}
	if got := FifthsToKey(12, false); got != "C#" {
		t.Errorf("Expected clamp to C#, got %q", got)
	}
}

func TestParseChord(t *testing.T) {
	c, ok := ParseChord("Ebmaj7/G")
	if !ok || c.Root != "Eb" || c.Quality != "maj7" || c.Bass != "G" {
		t.Errorf("Unexpected parse %+v ok=%v", c, ok)
	}
	if _, ok := ParseChord("hello"); ok {
		t.Errorf("Expected parse failure")
	}
}
