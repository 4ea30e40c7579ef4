package grid

import (
	"math"
	"sort"

	"github.com/pbrusco/musicians-helper/model"
)

// Slot 时间线上的一个小节
type Slot struct {
	Index    int     `json:"index"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Rubato   bool    `json:"rubato"`
}

// End 小节结束时间
func (s Slot) End() float64 {
	return s.Start + s.Duration
}

// Contains t 是否落在 [Start, End) 内
func (s Slot) Contains(t float64) bool {
	return t >= s.Start && t < s.End()
}

// Timeline 按 Index 升序排列的小节时间线
type Timeline []Slot

// Build 由小节列表和网格配置计算时间线
// 每次调用都重新累加，小节数量级较小，不做缓存。
func Build(measures []model.Measure, cfg model.GridConfig) Timeline {
	sorted := make([]model.Measure, len(measures))
	copy(sorted, measures)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	std := StandardDuration(cfg)
	timeline := make(Timeline, 0, len(sorted))
	cursor := cfg.Offset
	for _, m := range sorted {
		d := std
		if m.Duration != nil && *m.Duration > 0 {
			d = *m.Duration
		}
		timeline = append(timeline, Slot{
			Index:    m.Index,
			Start:    cursor,
			Duration: d,
			Rubato:   m.Duration != nil,
		})
		cursor += d
	}
	return timeline
}

// End 最后一个小节的结束时间，空时间线返回 0
func (t Timeline) End() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].End()
}

// MeasureAt 查找包含时间 sec 的小节
func (t Timeline) MeasureAt(sec float64) (Slot, bool) {
	i := sort.Search(len(t), func(i int) bool {
		return t[i].End() > sec
	})
	if i < len(t) && t[i].Contains(sec) {
		return t[i], true
	}
	return Slot{}, false
}

// Find 按小节序号查找
func (t Timeline) Find(index int) (Slot, bool) {
	i := sort.Search(len(t), func(i int) bool {
		return t[i].Index >= index
	})
	if i < len(t) && t[i].Index == index {
		return t[i], true
	}
	return Slot{}, false
}

// Range 将小节序号区间转换为时间区间
func (t Timeline) Range(fromIndex, toIndex int) (start, end float64, ok bool) {
	if fromIndex > toIndex {
		fromIndex, toIndex = toIndex, fromIndex
	}
	first, ok1 := t.Find(fromIndex)
	last, ok2 := t.Find(toIndex)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return first.Start, last.End(), true
}

// DragBoundary 拖动第 index 小节的结束边界到 dragged，返回该小节的新时长
// 新时长低于 MinMeasureDuration 时拒绝。
func (t Timeline) DragBoundary(index int, dragged float64) (float64, bool) {
	slot, ok := t.Find(index)
	if !ok {
		return 0, false
	}
	d := dragged - slot.Start
	if d < MinMeasureDuration || math.IsNaN(d) {
		return 0, false
	}
	return d, true
}

// Position 音乐位置：小节序号、拍（从 1 开始）、拍内进度
type Position struct {
	Measure  int     `json:"measure"`
	Beat     int     `json:"beat"`
	Fraction float64 `json:"fraction"`
}

// Position 计算时间 sec 对应的音乐位置
// 自由速度小节按比例缩放拍长。
func (t Timeline) Position(sec float64, cfg model.GridConfig) (Position, bool) {
	slot, ok := t.MeasureAt(sec)
	if !ok {
		return Position{}, false
	}
	beatLen := scaledInterval(slot, cfg)
	if beatLen <= 0 {
		return Position{Measure: slot.Index, Beat: 1}, true
	}
	elapsed := (sec - slot.Start) / beatLen
	beat := int(math.Floor(elapsed))
	return Position{
		Measure:  slot.Index,
		Beat:     beat + 1,
		Fraction: elapsed - float64(beat),
	}, true
}

// scaledInterval 小节内的点击间隔，自由速度小节按时长比例缩放
func scaledInterval(slot Slot, cfg model.GridConfig) float64 {
	interval := ClickInterval(cfg)
	std := StandardDuration(cfg)
	if interval <= 0 || std <= 0 {
		return 0
	}
	return interval * slot.Duration / std
}
