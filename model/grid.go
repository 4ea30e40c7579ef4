package model

// BeatUnit 节拍单位，表示 bpm 中一拍对应的音符时值
type BeatUnit string

const (
	BeatUnitQuarter       BeatUnit = "quarter"
	BeatUnitEighth        BeatUnit = "eighth"
	BeatUnitDottedQuarter BeatUnit = "dotted-quarter"
)

// GridConfig 全局网格配置（速度、拍号、调号、起始偏移）
type GridConfig struct {
	BPM           float64  `json:"bpm"`
	TimeSigTop    int      `json:"timeSigTop"`
	TimeSigBottom int      `json:"timeSigBottom"`
	KeySignature  string   `json:"keySignature"`
	Offset        float64  `json:"offset"`   // 第一小节在音频中的起始时间（秒）
	BeatUnit      BeatUnit `json:"beatUnit"` // quarter, eighth, dotted-quarter
}

// DefaultGridConfig 返回默认网格配置（120 BPM, 4/4, C 大调）
func DefaultGridConfig() GridConfig {
	return GridConfig{
		BPM:           120,
		TimeSigTop:    4,
		TimeSigBottom: 4,
		KeySignature:  "C",
		Offset:        0,
		BeatUnit:      BeatUnitQuarter,
	}
}

// GridPatch 网格配置的部分更新，nil 字段保持不变
type GridPatch struct {
	BPM           *float64  `json:"bpm,omitempty"`
	TimeSigTop    *int      `json:"timeSigTop,omitempty"`
	TimeSigBottom *int      `json:"timeSigBottom,omitempty"`
	KeySignature  *string   `json:"keySignature,omitempty"`
	Offset        *float64  `json:"offset,omitempty"`
	BeatUnit      *BeatUnit `json:"beatUnit,omitempty"`
}

// Apply 将部分更新合并到配置上
func (p GridPatch) Apply(cfg GridConfig) GridConfig {
	if p.BPM != nil {
		cfg.BPM = *p.BPM
	}
	if p.TimeSigTop != nil {
		cfg.TimeSigTop = *p.TimeSigTop
	}
	if p.TimeSigBottom != nil {
		cfg.TimeSigBottom = *p.TimeSigBottom
	}
	if p.KeySignature != nil {
		cfg.KeySignature = *p.KeySignature
	}
	if p.Offset != nil {
		cfg.Offset = *p.Offset
	}
	if p.BeatUnit != nil {
		cfg.BeatUnit = *p.BeatUnit
	}
	return cfg
}
