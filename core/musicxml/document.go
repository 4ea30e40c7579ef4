package musicxml

import "encoding/xml"

// <score-partwise> 文档结构（只覆盖导入导出用到的元素）

type scorePartwise struct {
	XMLName  xml.Name `xml:"score-partwise"`
	Version  string   `xml:"version,attr,omitempty"`
	Work     *work    `xml:"work,omitempty"`
	PartList partList `xml:"part-list"`
	Parts    []part   `xml:"part"`
}

type work struct {
	Title string `xml:"work-title"`
}

type partList struct {
	ScoreParts []scorePart `xml:"score-part"`
}

type scorePart struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type part struct {
	ID       string    `xml:"id,attr"`
	Measures []measure `xml:"measure"`
}

type measure struct {
	Number     string      `xml:"number,attr"`
	Attributes *attributes `xml:"attributes,omitempty"`
	Directions []direction `xml:"direction"`
	Harmonies  []harmony   `xml:"harmony"`
	Notes      []note      `xml:"note"`
}

type attributes struct {
	Divisions int      `xml:"divisions,omitempty"`
	Key       *key     `xml:"key,omitempty"`
	Time      *timeSig `xml:"time,omitempty"`
	Clef      *clef    `xml:"clef,omitempty"`
}

type key struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode,omitempty"`
}

type timeSig struct {
	Beats    string `xml:"beats"`
	BeatType string `xml:"beat-type"`
}

type clef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type direction struct {
	Placement     string          `xml:"placement,attr,omitempty"`
	DirectionType []directionType `xml:"direction-type"`
	Sound         *sound          `xml:"sound,omitempty"`
}

type directionType struct {
	Metronome *metronome `xml:"metronome,omitempty"`
	Words     string     `xml:"words,omitempty"`
}

type metronome struct {
	BeatUnit    string    `xml:"beat-unit"`
	BeatUnitDot *struct{} `xml:"beat-unit-dot,omitempty"`
	PerMinute   string    `xml:"per-minute"`
}

type sound struct {
	Tempo float64 `xml:"tempo,attr,omitempty"`
}

type harmony struct {
	Root root  `xml:"root"`
	Kind kind  `xml:"kind"`
	Bass *bass `xml:"bass,omitempty"`
}

type root struct {
	Step  string  `xml:"root-step"`
	Alter float64 `xml:"root-alter,omitempty"`
}

type kind struct {
	Value string `xml:",chardata"`
	Text  string `xml:"text,attr,omitempty"`
}

type bass struct {
	Step  string  `xml:"bass-step"`
	Alter float64 `xml:"bass-alter,omitempty"`
}

type note struct {
	Rest     *rest   `xml:"rest,omitempty"`
	Duration int     `xml:"duration"`
	Lyrics   []lyric `xml:"lyric"`
}

type rest struct {
	Measure string `xml:"measure,attr,omitempty"`
}

type lyric struct {
	Number string `xml:"number,attr,omitempty"`
	Text   string `xml:"text"`
}
