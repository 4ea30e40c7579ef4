package session

import (
	"reflect"

	"github.com/pbrusco/musicians-helper/core/editing"
	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/core/history"
	"github.com/pbrusco/musicians-helper/core/theory"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

// ========== 结构性编辑（同步提交历史） ==========

// InsertMeasure 在 target 之前或之后插入空白小节
func (s *Session) InsertMeasure(target int, at editing.Placement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, idx := editing.InsertAt(s.measures, target, at)
	if idx == 0 {
		return
	}
	s.measures = out
	s.selection = editing.Normalize(editing.ShiftSelection(s.selection, idx, 1), len(s.measures))
	s.syncRegionLocked()
	s.commitLocked()
}

// DeleteMeasure 删除小节，最后一个小节不可删除
func (s *Session) DeleteMeasure(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, selected := len(s.measures), len(s.selection)
	s.measures, s.selection = editing.Delete(s.measures, index, s.selection)
	if len(s.measures) == before {
		return
	}
	if selected > 0 && len(s.selection) == 0 {
		s.transport.ClearRegion()
	}
	s.syncRegionLocked()
	s.commitLocked()
}

// DuplicateSelection 复制选中的小节到选区之后，新副本成为选区
func (s *Session) DuplicateSelection() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.selection) == 0 {
		return nil
	}
	s.measures, s.selection = editing.Duplicate(s.measures, s.selection)
	s.syncRegionLocked()
	s.commitLocked()
	return append([]int(nil), s.selection...)
}

// AddMeasures 在末尾追加 n 个小节（n<=0 时使用默认块大小）
func (s *Session) AddMeasures(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.measures = editing.AddBlock(s.measures, n)
	s.commitLocked()
}

// ========== 实时编辑（在边界处由 Commit 提交） ==========

// UpdateMeasureField 实时修改和弦或歌词，不提交历史
func (s *Session) UpdateMeasureField(index int, field editing.Field, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, ok := editing.UpdateField(s.measures, index, field, value)
	if !ok {
		return false
	}
	s.measures = out
	s.markDirtyLocked()
	s.publishLocked(UpdateComposition)
	return true
}

// DragBoundary 拖动小节结束边界，拖动结束后调用 Commit
func (s *Session) DragBoundary(index int, dragged float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, ok := editing.ApplyDrag(s.measures, grid.Build(s.measures, s.grid), index, dragged)
	if !ok {
		return false
	}
	s.measures = out
	s.markDirtyLocked()
	s.publishLocked(UpdateComposition)
	return true
}

// Commit 在编辑边界（失焦、拖动结束）提交当前状态
func (s *Session) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()
}

// SetMeasureDuration 设置或清除单个小节的时长覆盖
func (s *Session) SetMeasureDuration(index int, duration *float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, ok := editing.SetDuration(s.measures, index, duration)
	if !ok {
		return false
	}
	s.measures = out
	s.commitLocked()
	return true
}

// ClearRubato 清除时长覆盖，indices 为空时作用于选区，选区也为空时作用于全部
func (s *Session) ClearRubato(indices []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(indices) == 0 {
		indices = s.selection
	}
	s.measures = editing.ClearDurations(s.measures, indices)
	s.commitLocked()
}

// ========== 历史 ==========

// Undo 撤销到上一个提交点，未提交的实时编辑先作为一步提交
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitLocked()
	snap, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.applySnapshotLocked(snap)
	return true
}

// Redo 重做
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.applySnapshotLocked(snap)
	return true
}

// ========== 调性与网格 ==========

// Transpose 所有和弦和调号一起移调
func (s *Session) Transpose(semitones int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if semitones%12 == 0 {
		return
	}
	s.measures = editing.TransposeAll(s.measures, semitones)
	s.grid.KeySignature = theory.TransposeKey(s.grid.KeySignature, semitones)
	logger.Debug("移调",
		logger.ProjectID(s.id),
		logger.Int("semitones", semitones),
		logger.String("key", s.grid.KeySignature))
	s.commitLocked()
}

// SetGridConfig 部分更新网格配置并重新计算派生的播放参数
func (s *Session) SetGridConfig(patch model.GridPatch) model.GridConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := grid.Sanitize(patch.Apply(s.grid))
	if next == s.grid {
		return s.grid
	}
	s.grid = next
	s.gridChangedLocked()
	s.commitLocked()
	return s.grid
}

// gridChangedLocked 网格变化后重新计算节拍器扫描起点，并把选区区间对齐到新布局
func (s *Session) gridChangedLocked() {
	s.clickFrom = s.transport.Position()
	s.syncRegionLocked()
}

// syncRegionLocked 把非空选区映射为传输控制器的时间区间
func (s *Session) syncRegionLocked() {
	lo, hi, ok := editing.Bounds(s.selection)
	if !ok {
		return
	}
	if start, end, ok := grid.Build(s.measures, s.grid).Range(lo, hi); ok {
		s.transport.SetRegion(start, end)
	}
}

// ========== 标记 ==========

// AddMarker 在 t 处添加标记
func (s *Session) AddMarker(t float64, label, color string) model.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := model.NewMarker(t, label, color)
	s.markers = append(model.CloneMarkers(s.markers), m)
	s.commitLocked()
	return m
}

// MarkerPatch 标记的部分更新
type MarkerPatch struct {
	Time  *float64 `json:"time,omitempty"`
	Label *string  `json:"label,omitempty"`
	Color *string  `json:"color,omitempty"`
}

// UpdateMarker 修改标记
func (s *Session) UpdateMarker(id string, patch MarkerPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	markers := model.CloneMarkers(s.markers)
	for i := range markers {
		if markers[i].ID != id {
			continue
		}
		if patch.Time != nil && *patch.Time >= 0 {
			markers[i].Time = *patch.Time
		}
		if patch.Label != nil {
			markers[i].Label = *patch.Label
		}
		if patch.Color != nil {
			markers[i].Color = *patch.Color
		}
		s.markers = markers
		s.commitLocked()
		return true
	}
	return false
}

// RemoveMarker 删除标记
func (s *Session) RemoveMarker(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.markers {
		if m.ID == id {
			markers := model.CloneMarkers(s.markers)
			s.markers = append(markers[:i], markers[i+1:]...)
			s.commitLocked()
			return true
		}
	}
	return false
}

// ========== 选区 ==========

// SelectMeasures 设置选中的小节，返回规范化后的选区
// 选区同时映射为传输控制器的时间区间。
func (s *Session) SelectMeasures(indices []int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection = editing.Normalize(indices, len(s.measures))
	if len(s.selection) == 0 {
		s.transport.ClearRegion()
	}
	s.syncRegionLocked()
	s.publishLocked(UpdateComposition)
	return append([]int(nil), s.selection...)
}

// ========== 内部方法（调用方持有锁） ==========

// commitLocked 与当前快照相同则跳过
func (s *Session) commitLocked() {
	if cur, ok := s.history.Current(); ok && sameSnapshot(cur, s.measures, s.grid, s.markers) {
		return
	}
	s.history.Commit(s.measures, s.grid, s.markers)
	s.markDirtyLocked()
	s.publishLocked(UpdateComposition)
}

func (s *Session) applySnapshotLocked(snap history.Snapshot) {
	s.measures = model.CloneMeasures(snap.Measures)
	s.grid = snap.GridConfig
	s.markers = model.CloneMarkers(snap.Markers)
	s.selection = editing.Normalize(s.selection, len(s.measures))
	s.gridChangedLocked()
	s.markDirtyLocked()
	s.publishLocked(UpdateComposition)
}

func sameSnapshot(snap history.Snapshot, measures []model.Measure, cfg model.GridConfig, markers []model.Marker) bool {
	return snap.GridConfig == cfg &&
		reflect.DeepEqual(snap.Measures, measures) &&
		reflect.DeepEqual(snap.Markers, markers)
}
