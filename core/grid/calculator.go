package grid

import (
	"math"
	"strings"

	"github.com/pbrusco/musicians-helper/model"
)

const (
	// DefaultBPM 缺省速度
	DefaultBPM = 120.0
	// MinBPM MaxBPM 速度的有效范围
	MinBPM = 1.0
	MaxBPM = 1000.0
	// MinMeasureDuration 拖拽调整小节时长的下限（秒）
	MinMeasureDuration = 0.1
	// MaxMeasures 一个项目最多的小节数
	MaxMeasures = 2000
)

// quarterLengths 每种节拍单位相当于多少个四分音符
var quarterLengths = map[model.BeatUnit]float64{
	model.BeatUnitQuarter:       1.0,
	model.BeatUnitEighth:        0.5,
	model.BeatUnitDottedQuarter: 1.5,
}

// QuarterLength 返回节拍单位的四分音符长度，未知单位按四分音符处理
func QuarterLength(unit model.BeatUnit) float64 {
	if v, ok := quarterLengths[unit]; ok {
		return v
	}
	return 1.0
}

// EffectiveBPM 换算成四分音符的速度
// bpm 计数的是 BeatUnit，一分钟内的四分音符数 = bpm × 单位的四分音符长度。
// eighth 减半，dotted-quarter 乘 1.5。
func EffectiveBPM(cfg model.GridConfig) float64 {
	return cfg.BPM * QuarterLength(cfg.BeatUnit)
}

// StandardDuration 标准小节时长（秒）
// 纯函数，不做校验；非法输入返回 0，调用方应先 Sanitize。
func StandardDuration(cfg model.GridConfig) float64 {
	eff := EffectiveBPM(cfg)
	if eff <= 0 || cfg.TimeSigBottom <= 0 || cfg.TimeSigTop <= 0 {
		return 0
	}
	return float64(cfg.TimeSigTop) * (4 / float64(cfg.TimeSigBottom)) * 60 / eff
}

// ClickInterval 节拍器两次点击的间隔（秒），每个 BeatUnit 点击一次
func ClickInterval(cfg model.GridConfig) float64 {
	if cfg.BPM <= 0 {
		return 0
	}
	return 60 / cfg.BPM
}

// ClicksPerMeasure 标准小节内的点击数，至少为 1
func ClicksPerMeasure(cfg model.GridConfig) int {
	interval := ClickInterval(cfg)
	std := StandardDuration(cfg)
	if interval <= 0 || std <= 0 {
		return 1
	}
	n := int(math.Ceil(std/interval - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// Sanitize 为非法字段填充默认值
func Sanitize(cfg model.GridConfig) model.GridConfig {
	switch {
	case cfg.BPM <= 0 || math.IsNaN(cfg.BPM) || math.IsInf(cfg.BPM, 0):
		cfg.BPM = DefaultBPM
	case cfg.BPM < MinBPM:
		cfg.BPM = MinBPM
	case cfg.BPM > MaxBPM:
		cfg.BPM = MaxBPM
	}
	if cfg.TimeSigTop <= 0 {
		cfg.TimeSigTop = 4
	}
	if cfg.TimeSigBottom <= 0 {
		cfg.TimeSigBottom = 4
	}
	if cfg.Offset < 0 || math.IsNaN(cfg.Offset) || math.IsInf(cfg.Offset, 0) {
		cfg.Offset = 0
	}
	if _, ok := quarterLengths[cfg.BeatUnit]; !ok {
		cfg.BeatUnit = model.BeatUnitQuarter
	}
	cfg.KeySignature = strings.TrimSpace(cfg.KeySignature)
	if cfg.KeySignature == "" {
		cfg.KeySignature = "C"
	}
	return cfg
}

// MeasuresToFill 覆盖整段音频（从 offset 开始）所需的标准小节数，不超过 MaxMeasures
func MeasuresToFill(cfg model.GridConfig, audioDuration float64) int {
	std := StandardDuration(cfg)
	remain := audioDuration - cfg.Offset
	if std <= 0 || !(remain > 0) {
		return 0
	}
	n := math.Ceil(remain/std - 1e-9)
	if n > MaxMeasures || math.IsInf(n, 0) {
		return MaxMeasures
	}
	return int(n)
}
