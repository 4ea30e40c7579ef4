package history

import (
	"sync"

	"github.com/pbrusco/musicians-helper/model"
)

// DefaultLimit 历史记录默认上限
const DefaultLimit = 50

// Snapshot 某个提交点的组合数据深拷贝
type Snapshot struct {
	Measures   []model.Measure
	GridConfig model.GridConfig
	Markers    []model.Marker
}

// clone 深拷贝快照，保证外部修改不影响历史
func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Measures:   model.CloneMeasures(s.Measures),
		GridConfig: s.GridConfig,
		Markers:    model.CloneMarkers(s.Markers),
	}
}

// Manager 线性撤销/重做历史
// 在撤销之后提交会丢弃 cursor 之后的所有快照。
type Manager struct {
	mu        sync.Mutex
	snapshots []Snapshot
	cursor    int
	limit     int
}

// NewManager 创建历史管理器，limit <= 0 时使用默认上限
func NewManager(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{cursor: -1, limit: limit}
}

// Commit 提交一个新快照
func (h *Manager) Commit(measures []model.Measure, cfg model.GridConfig, markers []model.Marker) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := Snapshot{Measures: measures, GridConfig: cfg, Markers: markers}.clone()

	// 丢弃重做分支
	h.snapshots = append(h.snapshots[:h.cursor+1], snap)

	// 超出上限时丢弃最旧的快照
	if over := len(h.snapshots) - h.limit; over > 0 {
		h.snapshots = append([]Snapshot(nil), h.snapshots[over:]...)
	}
	h.cursor = len(h.snapshots) - 1
}

// Reset 清空历史并以 base 作为新的起点（切换项目或导入后调用）
func (h *Manager) Reset(measures []model.Measure, cfg model.GridConfig, markers []model.Marker) {
	h.mu.Lock()
	h.snapshots = nil
	h.cursor = -1
	h.mu.Unlock()

	h.Commit(measures, cfg, markers)
}

// Undo 回退一步，已在最早快照时返回 false
func (h *Manager) Undo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor <= 0 {
		return Snapshot{}, false
	}
	h.cursor--
	return h.snapshots[h.cursor].clone(), true
}

// Redo 前进一步，已在最新快照时返回 false
func (h *Manager) Redo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor >= len(h.snapshots)-1 {
		return Snapshot{}, false
	}
	h.cursor++
	return h.snapshots[h.cursor].clone(), true
}

// Current 返回当前快照
func (h *Manager) Current() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor < 0 {
		return Snapshot{}, false
	}
	return h.snapshots[h.cursor].clone(), true
}

// CanUndo 是否可撤销
func (h *Manager) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

// CanRedo 是否可重做
func (h *Manager) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.snapshots)-1
}

// Len 快照数量
func (h *Manager) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.snapshots)
}

// Cursor 当前位置，空历史为 -1
func (h *Manager) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}
