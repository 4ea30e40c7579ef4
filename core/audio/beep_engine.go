package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

const (
	defaultSampleRate = 44100
	resampleQuality   = 4

	clickFreq       = 880.0
	clickAccentFreq = 1760.0
	clickLength     = 30 * time.Millisecond
)

var errNotLoaded = fmt.Errorf("start playback: %w", model.ErrNotLoaded)

// BeepEngine 基于 beep 的音频引擎
// 解码后的音频整段缓存在内存中，播放时按偏移切片，经变速与音量处理后送入混音器。
// 变调只记录数值，不做音高处理。
type BeepEngine struct {
	monotonic

	mu          sync.Mutex
	sampleRate  beep.SampleRate
	initialized bool
	mixer       *beep.Mixer

	buffer    *beep.Buffer
	ctrl      *beep.Ctrl
	resampler *beep.Resampler
	volume    *effects.Volume

	rate          float64
	detune        float64
	volumeDb      float64
	clickVolumeDb float64
}

// NewBeepEngine 创建引擎，扬声器在首次播放时初始化
func NewBeepEngine(sampleRate int) *BeepEngine {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	return &BeepEngine{
		monotonic:     newMonotonic(),
		sampleRate:    beep.SampleRate(sampleRate),
		mixer:         &beep.Mixer{},
		rate:          1.0,
		clickVolumeDb: -6,
	}
}

// initSpeaker 初始化扬声器（调用方持有 e.mu）
func (e *BeepEngine) initSpeaker() error {
	if e.initialized {
		return nil
	}
	if err := speaker.Init(e.sampleRate, e.sampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(e.mixer)
	e.initialized = true
	return nil
}

// Load 解码 WAV 并缓存，采样率不同时重采样到引擎采样率
func (e *BeepEngine) Load(data []byte) (Info, error) {
	s, format, err := decode(data)
	if err != nil {
		return Info{}, err
	}
	defer s.Close()

	var src beep.Streamer = s
	if format.SampleRate != e.sampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, e.sampleRate, s)
	}
	bufFormat := format
	bufFormat.SampleRate = e.sampleRate
	buf := beep.NewBuffer(bufFormat)
	buf.Append(src)
	if err := s.Err(); err != nil {
		return Info{}, fmt.Errorf("read wav: %v: %w", err, model.ErrDecode)
	}

	info := Info{
		Duration:   e.sampleRate.D(buf.Len()).Seconds(),
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.buffer = buf

	logger.Info("音频已解码",
		logger.Float64("duration", info.Duration),
		logger.Int("sampleRate", info.SampleRate))
	return info, nil
}

// Start 从 offset 秒开始播放，duration>0 时只播放该长度
func (e *BeepEngine) Start(at, offset, duration float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buffer == nil {
		return errNotLoaded
	}
	if err := e.initSpeaker(); err != nil {
		return err
	}
	e.stopLocked()

	from := e.sampleRate.N(time.Duration(offset * float64(time.Second)))
	to := e.buffer.Len()
	if duration > 0 {
		to = from + e.sampleRate.N(time.Duration(duration*float64(time.Second)))
	}
	from = clampSample(from, e.buffer.Len())
	to = clampSample(to, e.buffer.Len())
	if to <= from {
		return nil
	}

	e.resampler = beep.ResampleRatio(resampleQuality, e.rate, e.buffer.Streamer(from, to))
	e.volume = &effects.Volume{Streamer: e.resampler, Base: 2}
	setGain(e.volume, e.volumeDb)
	e.ctrl = &beep.Ctrl{Streamer: e.volume}

	speaker.Lock()
	e.mixer.Add(e.ctrl)
	speaker.Unlock()
	return nil
}

func (e *BeepEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *BeepEngine) stopLocked() {
	if e.ctrl == nil {
		return
	}
	if e.initialized {
		speaker.Lock()
		e.ctrl.Paused = true
		e.ctrl.Streamer = nil
		speaker.Unlock()
	}
	e.ctrl = nil
	e.resampler = nil
	e.volume = nil
}

// SetPlaybackRate 修改播放速率，正在播放时立即生效
func (e *BeepEngine) SetPlaybackRate(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rate = rate
	if e.resampler != nil && e.initialized {
		speaker.Lock()
		e.resampler.SetRatio(rate)
		speaker.Unlock()
	}
}

func (e *BeepEngine) SetDetune(semitones float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detune = semitones
}

// SetVolumeDb 修改音量，正在播放时立即生效
func (e *BeepEngine) SetVolumeDb(db float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.volumeDb = db
	if e.volume != nil && e.initialized {
		speaker.Lock()
		setGain(e.volume, db)
		speaker.Unlock()
	}
}

// SetClickVolumeDb 设置节拍器音量
func (e *BeepEngine) SetClickVolumeDb(db float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clickVolumeDb = db
}

// Click 播放一次节拍器滴答声，重拍音高更高
func (e *BeepEngine) Click(accent bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.initSpeaker(); err != nil {
		logger.Warn("节拍器不可用", logger.ErrorField(err))
		return
	}
	freq := clickFreq
	if accent {
		freq = clickAccentFreq
	}
	tone, err := generators.SineTone(e.sampleRate, freq)
	if err != nil {
		return
	}
	vol := &effects.Volume{Streamer: beep.Take(e.sampleRate.N(clickLength), tone), Base: 2}
	setGain(vol, e.clickVolumeDb)

	speaker.Lock()
	e.mixer.Add(vol)
	speaker.Unlock()
}

// Close 停止输出并关闭扬声器
func (e *BeepEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	if e.initialized {
		speaker.Clear()
		speaker.Close()
		e.initialized = false
	}
}

// setGain dB 转换为以 2 为底的音量
func setGain(v *effects.Volume, db float64) {
	if math.IsInf(db, -1) {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = db / (20 * math.Log10(2))
}

func clampSample(n, length int) int {
	if n < 0 {
		return 0
	}
	if n > length {
		return length
	}
	return n
}
