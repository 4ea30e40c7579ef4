package theory

import "strings"

// majorKeys 五度圈上 -7..+7 对应的大调
var majorKeys = [15]string{"Cb", "Gb", "Db", "Ab", "Eb", "Bb", "F", "C", "G", "D", "A", "E", "B", "F#", "C#"}

const (
	MinFifths = -7
	MaxFifths = 7
)

// FifthsToKey 由升降号数量得到调名
// 小调由关系大调的主音下移 3 个半音得到，并追加 m。
func FifthsToKey(fifths int, minor bool) string {
	if fifths < MinFifths {
		fifths = MinFifths
	}
	if fifths > MaxFifths {
		fifths = MaxFifths
	}
	major := majorKeys[fifths-MinFifths]
	if !minor {
		return major
	}
	idx, _ := NoteIndex(major)
	return NoteName(idx+9, fifths < 0) + "m"
}

// KeyToFifths 由调名得到升降号数量
// 先匹配标准拼写，再按音高类匹配（取升降号最少的等音调）。
func KeyToFifths(key string) (fifths int, minor bool, ok bool) {
	root, minor, ok := splitKey(strings.TrimSpace(key))
	if !ok {
		return 0, false, false
	}
	name := root
	if minor {
		name += "m"
	}
	for f := MinFifths; f <= MaxFifths; f++ {
		if FifthsToKey(f, minor) == name {
			return f, minor, true
		}
	}

	idx, _ := NoteIndex(root)
	best, found := 0, false
	for f := MinFifths; f <= MaxFifths; f++ {
		candRoot := strings.TrimSuffix(FifthsToKey(f, minor), "m")
		ci, _ := NoteIndex(candRoot)
		if ci != idx {
			continue
		}
		if !found || abs(f) < abs(best) {
			best, found = f, true
		}
	}
	return best, minor, found
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
