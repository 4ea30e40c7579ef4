package storage

import "testing"

func TestAudioKey(t *testing.T) {
	cases := map[string]string{
		"take.wav":             "audio/p1/take.wav",
		"../../etc/passwd.wav": "audio/p1/passwd.wav",
		`C:\music\song.wav`:    "audio/p1/song.wav",
		"":                     "audio/p1/audio.wav",
	}
	for in, want := range cases {
		if got := AudioKey("p1", in); got != want {
			t.Errorf("AudioKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProjectPrefix(t *testing.T) {
	if got := ProjectPrefix("p1"); got != "audio/p1/" {
		t.Errorf("ProjectPrefix = %q", got)
	}
	if got := ProjectPrefix(""); got != "audio/" {
		t.Errorf("ProjectPrefix(\"\") = %q", got)
	}
}

func TestProjectOf(t *testing.T) {
	if got := projectOf("audio/abc/take.wav"); got != "abc" {
		t.Errorf("projectOf = %q", got)
	}
	if got := projectOf("other/file"); got != "" {
		t.Errorf("projectOf = %q", got)
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		512:         "512 B",
		2048:        "2.0 KB",
		5 * 1 << 20: "5.0 MB",
	}
	for in, want := range cases {
		if got := FormatSize(in); got != want {
			t.Errorf("FormatSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestContentType(t *testing.T) {
	if contentType("a.WAV") != "audio/wav" || contentType("a.bin") != "application/octet-stream" {
		t.Error("content type mapping")
	}
}
