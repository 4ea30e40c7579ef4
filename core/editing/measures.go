package editing

import (
	"sort"

	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/core/theory"
	"github.com/pbrusco/musicians-helper/model"
)

// DefaultBlockSize AddBlock 默认追加的小节数
const DefaultBlockSize = 4

// Placement 插入位置
type Placement int

const (
	Before Placement = iota
	After
)

// Field 可编辑的小节文本字段
type Field string

const (
	FieldChords Field = "chords"
	FieldLyrics Field = "lyrics"
)

// 所有结构性操作都返回新的、重新编号（1..N）的列表，不修改入参。

// Reindex 按当前顺序重新编号为 1..N
func Reindex(measures []model.Measure) []model.Measure {
	out := model.CloneMeasures(measures)
	if out == nil {
		out = []model.Measure{}
	}
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}

// Renumber 先按 Index 排序再重新编号，用于导入和恢复外部数据
func Renumber(measures []model.Measure) []model.Measure {
	return Reindex(sorted(measures))
}

// sorted 按 Index 升序返回副本
func sorted(measures []model.Measure) []model.Measure {
	out := model.CloneMeasures(measures)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out
}

// position 返回 index 在有序列表中的下标
func position(measures []model.Measure, index int) int {
	for i, m := range measures {
		if m.Index == index {
			return i
		}
	}
	return -1
}

// Insert 在 target 小节之前或之后插入一个空白小节
func Insert(measures []model.Measure, target int, at Placement) []model.Measure {
	out, _ := InsertAt(measures, target, at)
	return out
}

// InsertAt 同 Insert，并返回新小节的序号；已达 MaxMeasures 时不插入，序号为 0
func InsertAt(measures []model.Measure, target int, at Placement) ([]model.Measure, int) {
	list := sorted(measures)
	if len(list) >= grid.MaxMeasures {
		return Reindex(list), 0
	}

	pos := target - 1
	if at == After {
		pos = target
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(list) {
		pos = len(list)
	}

	out := make([]model.Measure, 0, len(list)+1)
	out = append(out, list[:pos]...)
	out = append(out, model.Measure{})
	out = append(out, list[pos:]...)
	return Reindex(out), pos + 1
}

// ShiftSelection 在 from 处插入 n 个小节后，把不小于 from 的选中序号后移
func ShiftSelection(selection []int, from, n int) []int {
	out := make([]int, 0, len(selection))
	for _, idx := range selection {
		if idx >= from {
			idx += n
		}
		out = append(out, idx)
	}
	return out
}

// Delete 删除 index 小节，并从选择中移除它
// 只剩一个小节时不删除。
func Delete(measures []model.Measure, index int, selection []int) ([]model.Measure, []int) {
	list := sorted(measures)
	pos := position(list, index)
	if pos < 0 || len(list) <= 1 {
		return Reindex(list), Normalize(selection, len(list))
	}

	out := make([]model.Measure, 0, len(list)-1)
	out = append(out, list[:pos]...)
	out = append(out, list[pos+1:]...)

	// 被删除小节之后的选择整体前移一位
	var sel []int
	for _, s := range selection {
		switch {
		case s == index:
			continue
		case s > index:
			sel = append(sel, s-1)
		default:
			sel = append(sel, s)
		}
	}
	return Reindex(out), Normalize(sel, len(out))
}

// Duplicate 复制选中的小节，插入到最大选中序号之后
// 非连续选择按升序复制；保留自由速度时长覆盖。返回新列表和新插入块的序号。
func Duplicate(measures []model.Measure, selected []int) ([]model.Measure, []int) {
	list := sorted(measures)
	sel := Normalize(selected, len(list))
	if len(sel) == 0 {
		return Reindex(list), nil
	}

	var copies []model.Measure
	for _, idx := range sel {
		if pos := position(list, idx); pos >= 0 {
			copies = append(copies, list[pos].Clone())
		}
	}
	if len(copies) == 0 {
		return Reindex(list), nil
	}
	if len(list)+len(copies) > grid.MaxMeasures {
		return Reindex(list), sel
	}

	insertAt := position(list, sel[len(sel)-1]) + 1
	out := make([]model.Measure, 0, len(list)+len(copies))
	out = append(out, list[:insertAt]...)
	out = append(out, copies...)
	out = append(out, list[insertAt:]...)

	newSel := make([]int, len(copies))
	for i := range copies {
		newSel[i] = insertAt + i + 1
	}
	return Reindex(out), newSel
}

// AddBlock 在末尾追加 n 个空白小节，总数不超过 MaxMeasures
func AddBlock(measures []model.Measure, n int) []model.Measure {
	if n <= 0 {
		n = DefaultBlockSize
	}
	out := sorted(measures)
	if room := grid.MaxMeasures - len(out); n > room {
		n = room
	}
	for i := 0; i < n; i++ {
		out = append(out, model.Measure{})
	}
	return Reindex(out)
}

// UpdateField 更新单个小节的文本字段（不改变结构）
func UpdateField(measures []model.Measure, index int, field Field, value string) ([]model.Measure, bool) {
	out := model.CloneMeasures(measures)
	pos := position(out, index)
	if pos < 0 {
		return out, false
	}
	switch field {
	case FieldChords:
		out[pos].Chords = value
	case FieldLyrics:
		out[pos].Lyrics = value
	default:
		return out, false
	}
	return out, true
}

// SetDuration 设置或清除（nil）小节的时长覆盖
// 低于 grid.MinMeasureDuration 的时长被忽略。
func SetDuration(measures []model.Measure, index int, duration *float64) ([]model.Measure, bool) {
	out := model.CloneMeasures(measures)
	pos := position(out, index)
	if pos < 0 {
		return out, false
	}
	if duration != nil && *duration < grid.MinMeasureDuration {
		return out, false
	}
	if duration == nil {
		out[pos].Duration = nil
	} else {
		out[pos].Duration = model.Float(*duration)
	}
	return out, true
}

// ClearDurations 清除一组小节的时长覆盖，indices 为空时清除全部
func ClearDurations(measures []model.Measure, indices []int) []model.Measure {
	out := model.CloneMeasures(measures)
	all := len(indices) == 0
	want := make(map[int]bool, len(indices))
	for _, i := range indices {
		want[i] = true
	}
	for i := range out {
		if all || want[out[i].Index] {
			out[i].Duration = nil
		}
	}
	return out
}

// ApplyDrag 拖动 index 小节的结束边界到 dragged 时间
// timeline 必须由同一 measures 构建。
func ApplyDrag(measures []model.Measure, timeline grid.Timeline, index int, dragged float64) ([]model.Measure, bool) {
	d, ok := timeline.DragBoundary(index, dragged)
	if !ok {
		return model.CloneMeasures(measures), false
	}
	return SetDuration(measures, index, &d)
}

// TransposeAll 对所有小节的和弦移调
func TransposeAll(measures []model.Measure, semitones int) []model.Measure {
	out := model.CloneMeasures(measures)
	for i := range out {
		out[i].Chords = theory.TransposeChordLine(out[i].Chords, semitones)
	}
	return out
}
