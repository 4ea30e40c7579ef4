package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pbrusco/musicians-helper/core/editing"
	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/core/transport"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

// LoopAction 循环操作
type LoopAction string

const (
	LoopSetStart LoopAction = "start"
	LoopSetEnd   LoopAction = "end"
	LoopClear    LoopAction = "clear"
	LoopToggle   LoopAction = "toggle"
)

// clickVolumeSetter 支持单独设置节拍器音量的引擎
type clickVolumeSetter interface {
	SetClickVolumeDb(db float64)
}

// ========== 音频 ==========

// LoadAudio 加载音频并上传到对象存储
// 解码失败时记录错误，之前的音频和播放状态保持不变。
func (s *Session) LoadAudio(ctx context.Context, data []byte, fileName string) error {
	if err := s.attachAudio(data, fileName); err != nil {
		return err
	}
	if s.store.Blobs == nil || s.store.Projects == nil {
		return nil
	}

	key, err := s.store.Blobs.PutAudio(ctx, s.id, fileName, data)
	if err == nil {
		err = s.store.Projects.SetAudio(ctx, s.id, fileName, key)
	}
	if err != nil {
		err = fmt.Errorf("保存音频 %s: %w", fileName, err)
		logger.Error("音频持久化失败", logger.ProjectID(s.id), logger.ErrorField(err))
		s.mu.Lock()
		s.saveErr = err.Error()
		s.publishLocked(UpdateSave)
		s.mu.Unlock()
		return err
	}
	return nil
}

// attachAudio 只在本地引擎中加载音频
func (s *Session) attachAudio(data []byte, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.engine.Load(data)
	if err != nil {
		s.audio.Error = err.Error()
		logger.Warn("音频加载失败",
			logger.ProjectID(s.id),
			logger.String("fileName", fileName),
			logger.ErrorField(err))
		s.publishLocked(UpdateAudio)
		return err
	}

	s.transport.SetLoaded(info.Duration)
	s.audio = model.AudioState{
		IsLoaded: true,
		Duration: info.Duration,
		FileName: fileName,
	}
	s.clickFrom = 0
	if s.fillToAudioLocked() {
		s.commitLocked()
	}
	logger.Info("音频已加载",
		logger.ProjectID(s.id),
		logger.String("fileName", fileName),
		logger.Float64("duration", info.Duration),
		logger.Int("sampleRate", info.SampleRate))
	s.publishLocked(UpdateAudio)
	return nil
}

// setAudioError 记录音频恢复失败
func (s *Session) setAudioError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio.Error = err.Error()
	s.publishLocked(UpdateAudio)
}

// ========== 传输命令 ==========

// TogglePlay 播放/暂停
func (s *Session) TogglePlay() transport.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.transport.TogglePlay()
	s.clickFrom = s.transport.Position()
	s.publishLocked(UpdateTransport)
	return state
}

// Stop 停止播放
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transport.Stop()
	s.publishLocked(UpdateTransport)
}

// Seek 跳转到 t 秒
func (s *Session) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transport.Seek(t)
	s.clickFrom = s.transport.Position()
	s.publishLocked(UpdateTransport)
}

// SeekMeasure 跳转到小节开头
func (s *Session) SeekMeasure(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := grid.Build(s.measures, s.grid).Find(index)
	if !ok {
		return false
	}
	s.transport.Seek(slot.Start)
	s.clickFrom = s.transport.Position()
	s.publishLocked(UpdateTransport)
	return true
}

// SeekRelative 以小节为单位前后移动，超出范围时停在第一个或最后一个小节
func (s *Session) SeekRelative(delta int) bool {
	s.mu.Lock()
	tl := grid.Build(s.measures, s.grid)
	s.mu.Unlock()

	if len(tl) == 0 {
		return false
	}
	first, last := tl[0].Index, tl[len(tl)-1].Index
	pos := s.transport.Position()

	var target int
	if slot, ok := tl.MeasureAt(pos); ok {
		target = slot.Index + delta
	} else if pos < tl[0].Start {
		target = first + delta - 1
	} else {
		target = last + delta + 1
	}
	if target < first {
		target = first
	}
	if target > last {
		target = last
	}
	return s.SeekMeasure(target)
}

// PlayRegion 单次播放 [start, start+duration)
func (s *Session) PlayRegion(start, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transport.PlayRegion(start, duration)
	s.clickFrom = s.transport.Position()
	s.publishLocked(UpdateTransport)
}

// PlaySelection 单次播放选中的小节
func (s *Session) PlaySelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, end, ok := s.selectionRangeLocked()
	if !ok {
		return false
	}
	s.transport.PlayRegion(start, end-start)
	s.clickFrom = s.transport.Position()
	s.publishLocked(UpdateTransport)
	return true
}

// LoopSelection 把选中的小节设为循环区间并开启循环
func (s *Session) LoopSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, end, ok := s.selectionRangeLocked()
	if !ok {
		return false
	}
	s.transport.SetLoopRange(start, end)
	s.publishLocked(UpdateTransport)
	return true
}

// SetLoop 设置循环起点/终点（at 为 nil 时取当前位置）、清除或切换循环
func (s *Session) SetLoop(action LoopAction, at *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.transport.Position()
	if at != nil {
		t = *at
	}
	switch action {
	case LoopSetStart:
		s.transport.SetLoopStart(t)
	case LoopSetEnd:
		s.transport.SetLoopEnd(t)
	case LoopClear:
		s.transport.ClearLoop()
	case LoopToggle:
		s.transport.ToggleLoop()
	default:
		return fmt.Errorf("未知的循环操作 %q: %w", action, model.ErrValidation)
	}
	s.publishLocked(UpdateTransport)
	return nil
}

// ========== 播放参数 ==========

// ParamsPatch 播放参数的部分更新
type ParamsPatch struct {
	Speed             *float64 `json:"speed,omitempty"`
	Detune            *float64 `json:"detune,omitempty"`
	VolumeDb          *float64 `json:"volumeDb,omitempty"`
	Metronome         *bool    `json:"metronome,omitempty"`
	MetronomeVolumeDb *float64 `json:"metronomeVolumeDb,omitempty"`
}

// SetParams 更新播放参数（随项目保存，不进入撤销历史）
func (s *Session) SetParams(patch ParamsPatch) model.Params {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.params
	if patch.Speed != nil {
		p.Speed = clampSpeed(*patch.Speed)
	}
	if patch.Detune != nil {
		p.Detune = *patch.Detune
	}
	if patch.VolumeDb != nil {
		p.VolumeDb = *patch.VolumeDb
	}
	if patch.Metronome != nil {
		p.Metronome = *patch.Metronome
	}
	if patch.MetronomeVolumeDb != nil {
		p.MetronomeVolumeDb = *patch.MetronomeVolumeDb
	}
	if p == s.params {
		return p
	}
	s.params = p
	s.applyParamsLocked()
	s.clickFrom = s.transport.Position()
	s.markDirtyLocked()
	s.publishLocked(UpdateParams)
	return p
}

func (s *Session) applyParamsLocked() {
	s.transport.SetSpeed(s.params.Speed)
	s.transport.SetDetune(s.params.Detune)
	s.transport.SetVolume(s.params.VolumeDb)
	if cv, ok := s.engine.(clickVolumeSetter); ok {
		cv.SetClickVolumeDb(s.params.MetronomeVolumeDb)
	}
}

func clampSpeed(rate float64) float64 {
	switch {
	case rate < transport.MinRate:
		return transport.MinRate
	case rate > transport.MaxRate:
		return transport.MaxRate
	}
	return rate
}

// ========== 位置推进 ==========

// Tick 推进一帧：更新位置、处理循环/结束、发出节拍器点击
func (s *Session) Tick() transport.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return transport.EventNone
	}
	from := s.clickFrom
	ev := s.transport.Tick()
	status := s.transport.Snapshot()

	to := status.Position
	if ev == transport.EventRegionDone {
		to = status.Region.End
	}
	played := ev == transport.EventEnded || ev == transport.EventRegionDone ||
		(status.State.IsPlaying() && ev != transport.EventLooped)
	if played && s.params.Metronome && to > from {
		for _, c := range grid.Clicks(grid.Build(s.measures, s.grid), s.grid, from, to) {
			s.engine.Click(c.Downbeat)
		}
	}
	if status.State.IsPlaying() || ev != transport.EventNone {
		s.clickFrom = status.Position
	}

	if ev != transport.EventNone {
		logger.Debug("传输事件",
			logger.ProjectID(s.id),
			logger.String("event", ev.String()),
			logger.Seconds("position", status.Position))
	}
	if status.State.IsPlaying() || ev != transport.EventNone {
		s.publishEventLocked(UpdateTransport, ev)
	}
	return ev
}

// Run 按 TickInterval 推进位置，直到 ctx 取消或会话关闭
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// ========== 内部方法（调用方持有锁） ==========

func (s *Session) selectionRangeLocked() (float64, float64, bool) {
	lo, hi, ok := editing.Bounds(s.selection)
	if !ok {
		return 0, 0, false
	}
	return grid.Build(s.measures, s.grid).Range(lo, hi)
}
