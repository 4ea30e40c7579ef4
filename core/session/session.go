package session

import (
	"context"
	"sync"
	"time"

	"github.com/pbrusco/musicians-helper/core/audio"
	"github.com/pbrusco/musicians-helper/core/editing"
	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/core/history"
	"github.com/pbrusco/musicians-helper/core/transport"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

// 默认的会话参数
const (
	DefaultAutosaveDelay = 1500 * time.Millisecond
	DefaultTickInterval  = 16 * time.Millisecond
)

// Options 会话参数
type Options struct {
	HistoryLimit  int
	AutosaveDelay time.Duration
	TickInterval  time.Duration
	DefaultGrid   model.GridConfig
}

func (o Options) withDefaults() Options {
	if o.AutosaveDelay <= 0 {
		o.AutosaveDelay = DefaultAutosaveDelay
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.DefaultGrid.BPM <= 0 {
		o.DefaultGrid = model.DefaultGridConfig()
	}
	o.DefaultGrid = grid.Sanitize(o.DefaultGrid)
	return o
}

// Session 一个项目的完整编辑/播放状态
// 所有组合数据由 mu 保护；传输控制器自带锁，加锁顺序固定为 mu -> transport。
type Session struct {
	mu sync.Mutex

	id    string
	name  string
	store Store
	opts  Options

	measures  []model.Measure
	grid      model.GridConfig
	markers   []model.Marker
	params    model.Params
	selection []int

	history   *history.Manager
	transport *transport.Controller
	engine    audio.Engine
	audio     model.AudioState

	dirty     bool
	saveErr   string
	saveGen   uint64
	saveTimer *time.Timer

	clickFrom float64 // 节拍器下一次扫描的起点

	listeners map[int]chan Update
	nextSub   int

	closed bool
	cancel context.CancelFunc
}

// New 创建会话，初始为默认网格和一组空白小节
func New(id string, engine audio.Engine, store Store, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		id:        id,
		store:     store,
		opts:      opts,
		grid:      opts.DefaultGrid,
		measures:  editing.AddBlock(nil, editing.DefaultBlockSize),
		params:    model.DefaultParams(),
		history:   history.NewManager(opts.HistoryLimit),
		transport: transport.New(engine),
		engine:    engine,
		listeners: make(map[int]chan Update),
	}
	s.history.Reset(s.measures, s.grid, s.markers)
	s.applyParamsLocked()
	return s
}

// ID 项目ID
func (s *Session) ID() string {
	return s.id
}

// Name 项目名称
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName 设置显示名称（不持久化）
func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Restore 用持久化状态替换整个状态包并重置历史
// 可以在音频加载之前或之后调用。
func (s *Session) Restore(state model.ProjectState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.measures = editing.Renumber(state.Measures)
	if len(s.measures) == 0 {
		s.measures = editing.AddBlock(nil, editing.DefaultBlockSize)
	}
	s.grid = grid.Sanitize(state.GridConfig)
	s.markers = model.CloneMarkers(state.Markers)
	s.params = state.Params
	if s.params.Speed <= 0 {
		s.params.Speed = 1.0
	}
	s.selection = nil
	s.fillToAudioLocked()
	s.history.Reset(s.measures, s.grid, s.markers)
	s.applyParamsLocked()
	s.clickFrom = s.transport.Position()

	logger.Debug("会话状态已恢复",
		logger.ProjectID(s.id),
		logger.Int("measures", len(s.measures)))
	s.publishLocked(UpdateComposition)
}

// ========== 查询 ==========

// View 会话的只读快照
type View struct {
	ProjectID  string           `json:"projectId"`
	Name       string           `json:"name"`
	Measures   []model.Measure  `json:"measures"`
	Layout     grid.Timeline    `json:"layout"`
	GridConfig model.GridConfig `json:"gridConfig"`
	Markers    []model.Marker   `json:"markers"`
	Params     model.Params     `json:"params"`
	Selection  []int            `json:"selection"`
	Audio      model.AudioState `json:"audio"`
	Transport  transport.Status `json:"transport"`
	CanUndo    bool             `json:"canUndo"`
	CanRedo    bool             `json:"canRedo"`
	Dirty      bool             `json:"dirty"`
	SaveError  string           `json:"saveError,omitempty"`
}

// View 返回当前完整状态
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.transport.Snapshot()
	return View{
		ProjectID:  s.id,
		Name:       s.name,
		Measures:   model.CloneMeasures(s.measures),
		Layout:     grid.Build(s.measures, s.grid),
		GridConfig: s.grid,
		Markers:    model.CloneMarkers(s.markers),
		Params:     s.params,
		Selection:  append([]int(nil), s.selection...),
		Audio:      s.audioStateLocked(status),
		Transport:  status,
		CanUndo:    s.history.CanUndo(),
		CanRedo:    s.history.CanRedo(),
		Dirty:      s.dirty,
		SaveError:  s.saveErr,
	}
}

// State 返回可持久化的状态包
func (s *Session) State() model.ProjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Layout 当前小节布局
func (s *Session) Layout() grid.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return grid.Build(s.measures, s.grid)
}

// CurrentTime 当前播放位置（秒）
func (s *Session) CurrentTime() float64 {
	return s.transport.Position()
}

// CurrentPosition 当前播放位置对应的小节和拍
func (s *Session) CurrentPosition() (grid.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return grid.Build(s.measures, s.grid).Position(s.transport.Position(), s.grid)
}

// CanUndo 是否可以撤销
func (s *Session) CanUndo() bool {
	return s.history.CanUndo()
}

// CanRedo 是否可以重做
func (s *Session) CanRedo() bool {
	return s.history.CanRedo()
}

// Status 传输状态
func (s *Session) Status() transport.Status {
	return s.transport.Snapshot()
}

// Dirty 是否有未保存的修改，以及最近一次保存失败的原因
func (s *Session) Dirty() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty, s.saveErr
}

// ========== 内部方法（调用方持有锁） ==========

func (s *Session) stateLocked() model.ProjectState {
	return model.ProjectState{
		Measures:   model.CloneMeasures(s.measures),
		GridConfig: s.grid,
		Markers:    model.CloneMarkers(s.markers),
		Params:     s.params,
	}
}

func (s *Session) audioStateLocked(status transport.Status) model.AudioState {
	a := s.audio
	a.IsPlaying = status.State.IsPlaying()
	a.CurrentTime = status.Position
	if status.Error != "" && a.Error == "" {
		a.Error = status.Error
	}
	return a
}

// fillToAudioLocked 音频比现有小节长时在末尾补齐空白小节
// 含自由速度小节的列表保持不变。
func (s *Session) fillToAudioLocked() bool {
	if !s.audio.IsLoaded || s.hasRubatoLocked() {
		return false
	}
	missing := grid.MeasuresToFill(s.grid, s.audio.Duration) - len(s.measures)
	if missing <= 0 {
		return false
	}
	s.measures = editing.AddBlock(s.measures, missing)
	return true
}

func (s *Session) hasRubatoLocked() bool {
	for _, m := range s.measures {
		if m.HasOverride() {
			return true
		}
	}
	return false
}
