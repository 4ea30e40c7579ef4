package model

// Measure 小节
// Duration 为 nil 表示使用网格标准时长，非 nil 表示自由速度（rubato）覆盖
type Measure struct {
	Index    int      `json:"index"`
	Chords   string   `json:"chords"`
	Lyrics   string   `json:"lyrics"`
	Duration *float64 `json:"duration,omitempty"`
}

// Clone 深拷贝小节
func (m Measure) Clone() Measure {
	if m.Duration != nil {
		d := *m.Duration
		m.Duration = &d
	}
	return m
}

// HasOverride 是否设置了时长覆盖
func (m Measure) HasOverride() bool {
	return m.Duration != nil
}

// CloneMeasures 深拷贝小节列表
func CloneMeasures(measures []Measure) []Measure {
	if measures == nil {
		return nil
	}
	out := make([]Measure, len(measures))
	for i, m := range measures {
		out[i] = m.Clone()
	}
	return out
}

// Float 返回指向 v 的指针，用于构造 Duration
func Float(v float64) *float64 {
	return &v
}
