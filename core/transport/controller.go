package transport

import (
	"math"
	"sync"

	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

// 播放速率范围
const (
	MinRate = 0.25
	MaxRate = 4.0
)

// Controller 基于锚点的传输控制器
// 播放位置 = anchorPos + (clock.Now() - anchorClock) * rate，每次改变速率或跳转时重新锚定。
// 循环由控制器负责，引擎只负责无界或定长播放。
type Controller struct {
	mu     sync.Mutex
	player Player

	state    State
	loaded   bool
	duration float64
	position float64
	rate     float64
	detune   float64
	volumeDb float64

	anchorClock float64
	anchorPos   float64

	loop   model.LoopState
	region model.RegionSelection
	err    string
}

// New 创建传输控制器
func New(player Player) *Controller {
	return &Controller{
		player: player,
		rate:   1.0,
	}
}

// ========== 加载状态 ==========

// SetLoaded 标记音频已加载，位置归零并把已记录的参数下发给引擎
func (c *Controller) SetLoaded(duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.loaded = duration > 0
	c.duration = math.Max(0, duration)
	c.position = 0
	c.err = ""
	c.clampLoopLocked()

	c.player.SetPlaybackRate(c.rate)
	c.player.SetDetune(c.detune)
	c.player.SetVolumeDb(c.volumeDb)
}

// Unload 停止播放并回到未加载状态
func (c *Controller) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.loaded = false
	c.duration = 0
	c.position = 0
	c.loop = model.LoopState{}
	c.region = model.RegionSelection{}
}

// Loaded 是否已加载音频
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// ========== 播放控制 ==========

// TogglePlay 在停止与播放之间切换，返回切换后的状态
func (c *Controller) TogglePlay() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return c.state
	}
	if c.state.IsPlaying() {
		c.position = c.currentLocked()
		c.stopLocked()
		return c.state
	}

	if c.position >= c.duration {
		c.position = 0
	}
	next := Playing
	if c.loop.Ready() {
		next = PlayingLooped
		if c.position < *c.loop.Start || c.position >= *c.loop.End {
			c.position = *c.loop.Start
		}
	}
	c.startLocked(next, c.position, 0)
	return c.state
}

// Stop 停止播放并冻结当前位置
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded || !c.state.IsPlaying() {
		return
	}
	c.position = c.currentLocked()
	c.stopLocked()
}

// Seek 跳转到 t（截断到 [0, duration]），播放中则重新锚定
func (c *Controller) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return
	}
	t = c.clampLocked(t)

	switch c.state {
	case Stopped:
		c.position = t
	case PlayingRegion:
		if t < c.region.Start || t >= c.region.End {
			c.player.Stop()
			c.startLocked(Playing, t, 0)
			return
		}
		c.player.Stop()
		c.startLocked(PlayingRegion, t, c.region.End-t)
	default:
		c.player.Stop()
		c.startLocked(c.state, t, 0)
	}
}

// SetSpeed 修改播放速率
// 播放中先按旧速率把已经过的时间折算进位置，再以新速率重新锚定。
func (c *Controller) SetSpeed(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate = clampRate(rate)
	if rate == c.rate {
		return
	}
	if c.loaded && c.state.IsPlaying() {
		now := c.player.Now()
		c.anchorPos = c.positionAt(now)
		c.anchorClock = now
		c.position = c.anchorPos
	}
	c.rate = rate
	c.player.SetPlaybackRate(rate)

	logger.Debug("传输速率变更",
		logger.Float64("rate", rate),
		logger.Seconds("position", c.position))
}

// PlayRegion 从 start 开始只播放 duration 秒，不受循环状态影响
func (c *Controller) PlayRegion(start, duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded || duration <= 0 {
		return
	}
	start = c.clampLocked(start)
	end := c.clampLocked(start + duration)
	if end <= start {
		return
	}
	if c.state.IsPlaying() {
		c.player.Stop()
	}
	c.region = model.RegionSelection{Active: true, Start: start, End: end}
	c.startLocked(PlayingRegion, start, end-start)
}

// SetDetune 设置变调（半音）
func (c *Controller) SetDetune(semitones float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detune = semitones
	c.player.SetDetune(semitones)
}

// SetVolume 设置音量（dB）
func (c *Controller) SetVolume(db float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volumeDb = db
	c.player.SetVolumeDb(db)
}

// ========== 循环与区间 ==========

// SetLoopStart 设置循环起点，早于起点的终点被清除
func (c *Controller) SetLoopStart(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return
	}
	t = c.clampLocked(t)
	c.loop.Start = &t
	if c.loop.End != nil && *c.loop.End <= t {
		c.loop.End = nil
	}
	c.syncLoopLocked()
}

// SetLoopEnd 设置循环终点，不晚于起点时忽略
func (c *Controller) SetLoopEnd(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return
	}
	t = c.clampLocked(t)
	if c.loop.Start != nil && t <= *c.loop.Start {
		return
	}
	c.loop.End = &t
	c.syncLoopLocked()
}

// SetLoopRange 一次设置循环区间并激活
func (c *Controller) SetLoopRange(start, end float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return
	}
	start, end = c.clampLocked(start), c.clampLocked(end)
	if end <= start {
		return
	}
	c.loop = model.LoopState{Active: true, Start: &start, End: &end}
	c.syncLoopLocked()
}

// ClearLoop 清除循环
func (c *Controller) ClearLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return
	}
	c.loop = model.LoopState{}
	c.syncLoopLocked()
}

// ToggleLoop 切换循环开关
func (c *Controller) ToggleLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return
	}
	c.loop.Active = !c.loop.Active
	c.syncLoopLocked()
}

// SetRegion 更新选择区间（不触发播放）
// 区间播放中修改区间时，引擎按新的结束点重新启动。
func (c *Controller) SetRegion(start, end float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return
	}
	start, end = c.clampLocked(start), c.clampLocked(end)
	if end < start {
		start, end = end, start
	}
	next := model.RegionSelection{Active: end > start, Start: start, End: end}
	if next == c.region {
		return
	}
	c.region = next
	if c.state != PlayingRegion {
		return
	}

	pos := c.currentLocked()
	c.player.Stop()
	switch {
	case !next.Active:
		c.startLocked(Playing, pos, 0)
	case pos < start || pos >= end:
		c.startLocked(PlayingRegion, start, end-start)
	default:
		c.startLocked(PlayingRegion, pos, end-pos)
	}
}

// ClearRegion 清除选择区间
func (c *Controller) ClearRegion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == PlayingRegion {
		pos := c.currentLocked()
		c.player.Stop()
		c.startLocked(Playing, pos, 0)
	}
	c.region = model.RegionSelection{}
}

// ========== 位置推进 ==========

// Tick 推进位置（每帧调用，可跳帧）
func (c *Controller) Tick() Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded || !c.state.IsPlaying() {
		return EventNone
	}
	pos := c.currentLocked()

	if c.state == PlayingLooped && c.loop.Ready() && pos >= *c.loop.End {
		c.player.Stop()
		c.startLocked(PlayingLooped, *c.loop.Start, 0)
		return EventLooped
	}
	if pos >= c.duration {
		c.position = c.duration
		c.stopLocked()
		return EventEnded
	}
	if c.state == PlayingRegion && c.region.Active && pos >= c.region.End {
		c.stopLocked()
		c.position = c.region.Start
		return EventRegionDone
	}
	c.position = pos
	return EventNone
}

// Position 返回当前位置（播放中实时计算）
func (c *Controller) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

// State 返回当前状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot 返回只读状态快照
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		State:    c.state,
		Loaded:   c.loaded,
		Position: c.currentLocked(),
		Duration: c.duration,
		Rate:     c.rate,
		Detune:   c.detune,
		VolumeDb: c.volumeDb,
		Loop:     cloneLoop(c.loop),
		Region:   c.region,
		Error:    c.err,
	}
}

// ========== 内部方法（调用方持有锁） ==========

func (c *Controller) positionAt(now float64) float64 {
	pos := c.anchorPos + (now-c.anchorClock)*c.rate
	if pos < 0 {
		return 0
	}
	return pos
}

func (c *Controller) currentLocked() float64 {
	if !c.state.IsPlaying() {
		return c.position
	}
	return math.Min(c.positionAt(c.player.Now()), c.duration)
}

func (c *Controller) clampLocked(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > c.duration {
		return c.duration
	}
	return t
}

// startLocked 在 at 位置锚定并启动引擎
func (c *Controller) startLocked(next State, at, length float64) {
	now := c.player.Now()
	c.anchorClock = now
	c.anchorPos = at
	c.position = at
	if err := c.player.Start(now, at, length); err != nil {
		c.err = err.Error()
		c.state = Stopped
		logger.Warn("引擎播放失败",
			logger.Seconds("position", at),
			logger.ErrorField(err))
		return
	}
	c.err = ""
	if next != c.state {
		logger.Debug("传输状态变更",
			logger.String("from", c.state.String()),
			logger.String("to", next.String()),
			logger.Seconds("position", at))
	}
	c.state = next
}

func (c *Controller) stopLocked() {
	if c.state.IsPlaying() {
		c.player.Stop()
		logger.Debug("传输状态变更",
			logger.String("from", c.state.String()),
			logger.String("to", Stopped.String()),
			logger.Seconds("position", c.position))
	}
	c.state = Stopped
}

// syncLoopLocked 循环设置变化后在 Playing 与 PlayingLooped 之间切换
func (c *Controller) syncLoopLocked() {
	switch {
	case c.state == Playing && c.loop.Ready():
		c.state = PlayingLooped
	case c.state == PlayingLooped && !c.loop.Ready():
		c.state = Playing
	}
}

func (c *Controller) clampLoopLocked() {
	if c.loop.Start != nil && *c.loop.Start > c.duration {
		c.loop.Start = nil
	}
	if c.loop.End != nil && *c.loop.End > c.duration {
		c.loop.End = nil
	}
}

func clampRate(rate float64) float64 {
	if math.IsNaN(rate) || rate <= 0 {
		return 1.0
	}
	return math.Max(MinRate, math.Min(MaxRate, rate))
}

func cloneLoop(l model.LoopState) model.LoopState {
	out := model.LoopState{Active: l.Active}
	if l.Start != nil {
		s := *l.Start
		out.Start = &s
	}
	if l.End != nil {
		e := *l.End
		out.End = &e
	}
	return out
}
