package theory

import (
	"regexp"
	"strings"
)

var (
	chordPattern = regexp.MustCompile(`^([A-G][#b]?)([^/]*)(?:/([A-G][#b]?))?$`)
	keyPattern   = regexp.MustCompile(`^([A-G][#b]?)(m|min)?$`)
	tokenPattern = regexp.MustCompile(`\S+`)
)

// Chord 解析后的和弦符号
type Chord struct {
	Root    string // 根音，如 F#
	Quality string // 根音之后的性质后缀，原样保留，如 m7, maj7, dim
	Bass    string // 斜线和弦的低音，可为空
}

// String 还原为和弦符号
func (c Chord) String() string {
	s := c.Root + c.Quality
	if c.Bass != "" {
		s += "/" + c.Bass
	}
	return s
}

// ParseChord 解析和弦符号，不符合语法（根音 + 可选升降号 + 后缀 + 可选 /低音）时返回 false
func ParseChord(symbol string) (Chord, bool) {
	m := chordPattern.FindStringSubmatch(symbol)
	if m == nil {
		return Chord{}, false
	}
	return Chord{Root: m[1], Quality: m[2], Bass: m[3]}, true
}

// TransposeChord 和弦移调，只替换根音（和斜线低音），后缀原样保留。
// 降号根音移调后仍用降号拼写，但经过本位音时拼写信息丢失，往返只保证等音（Bb7 +2 -2 得到 A#7）
func TransposeChord(symbol string, semitones int) string {
	c, ok := ParseChord(symbol)
	if !ok {
		return symbol
	}
	c.Root = TransposeNote(c.Root, semitones)
	if c.Bass != "" {
		c.Bass = TransposeNote(c.Bass, semitones)
	}
	return c.String()
}

// TransposeChordLine 对空格分隔的多个和弦逐个移调，保留原有空白
func TransposeChordLine(line string, semitones int) string {
	if mod12(semitones) == 0 || strings.TrimSpace(line) == "" {
		return line
	}
	return tokenPattern.ReplaceAllStringFunc(line, func(tok string) string {
		return TransposeChord(tok, semitones)
	})
}
