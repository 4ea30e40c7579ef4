package musicxml

import "strings"

// 和弦性质后缀与 MusicXML <kind> 取值的对应关系
var qualityKinds = map[string]string{
	"":      "major",
	"maj":   "major",
	"m":     "minor",
	"min":   "minor",
	"7":     "dominant",
	"maj7":  "major-seventh",
	"m7":    "minor-seventh",
	"mmaj7": "major-minor",
	"dim":   "diminished",
	"dim7":  "diminished-seventh",
	"aug":   "augmented",
	"+":     "augmented",
	"m7b5":  "half-diminished",
	"6":     "major-sixth",
	"m6":    "minor-sixth",
	"9":     "dominant-ninth",
	"maj9":  "major-ninth",
	"m9":    "minor-ninth",
	"11":    "dominant-11th",
	"13":    "dominant-13th",
	"sus2":  "suspended-second",
	"sus4":  "suspended-fourth",
	"sus":   "suspended-fourth",
	"5":     "power",
}

// kindQualities <kind> 到默认后缀的反向表
var kindQualities = map[string]string{
	"major":              "",
	"minor":              "m",
	"dominant":           "7",
	"major-seventh":      "maj7",
	"minor-seventh":      "m7",
	"major-minor":        "mmaj7",
	"diminished":         "dim",
	"diminished-seventh": "dim7",
	"augmented":          "aug",
	"half-diminished":    "m7b5",
	"major-sixth":        "6",
	"minor-sixth":        "m6",
	"dominant-ninth":     "9",
	"major-ninth":        "maj9",
	"minor-ninth":        "m9",
	"dominant-11th":      "11",
	"dominant-13th":      "13",
	"suspended-second":   "sus2",
	"suspended-fourth":   "sus4",
	"power":              "5",
}

// kindFor 返回后缀对应的 <kind>，未知后缀为 other
func kindFor(quality string) kind {
	k, ok := qualityKinds[quality]
	if !ok {
		k = "other"
	}
	return kind{Value: k, Text: quality}
}

// qualityFor 优先使用 text 属性还原原始后缀
func qualityFor(k kind) string {
	if k.Text != "" {
		return k.Text
	}
	return kindQualities[strings.TrimSpace(k.Value)]
}
