package theory

import "strings"

// 以 C 为 0 的半音表，分别使用升号和降号拼写
var (
	sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	flatNames  = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}
)

// 两张表之外的等音拼写
var extraSpellings = map[string]int{
	"Cb": 11,
	"Fb": 4,
	"E#": 5,
	"B#": 0,
}

// NoteIndex 返回音名的半音序号（C=0）
func NoteIndex(note string) (int, bool) {
	for i := 0; i < 12; i++ {
		if sharpNames[i] == note || flatNames[i] == note {
			return i, true
		}
	}
	if i, ok := extraSpellings[note]; ok {
		return i, true
	}
	return 0, false
}

// isFlat 音名是否使用降号拼写
func isFlat(note string) bool {
	return len(note) > 1 && note[1] == 'b'
}

// NoteName 按指定拼写偏好返回半音序号对应的音名
func NoteName(index int, preferFlats bool) string {
	index = mod12(index)
	if preferFlats {
		return flatNames[index]
	}
	return sharpNames[index]
}

// TransposeNote 将音名移调 semitones 个半音
// 原音名为降号拼写时结果使用降号表，否则使用升号表；无法识别时原样返回。
func TransposeNote(note string, semitones int) string {
	idx, ok := NoteIndex(note)
	if !ok {
		return note
	}
	if mod12(semitones) == 0 {
		return note
	}
	return NoteName(idx+semitones, isFlat(note))
}

// TransposeKey 调号移调，小调保留 m 后缀
func TransposeKey(key string, semitones int) string {
	key = strings.TrimSpace(key)
	root, minor, ok := splitKey(key)
	if !ok {
		return key
	}
	out := TransposeNote(root, semitones)
	if minor {
		out += "m"
	}
	return out
}

func splitKey(key string) (root string, minor bool, ok bool) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return "", false, false
	}
	return m[1], m[2] != "", true
}

func mod12(n int) int {
	return ((n % 12) + 12) % 12
}
