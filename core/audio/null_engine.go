package audio

import "sync"

// NullEngine 只提供时钟的引擎，不输出声音，用于无声卡环境和测试
type NullEngine struct {
	monotonic

	mu       sync.Mutex
	info     Info
	loaded   bool
	playing  bool
	rate     float64
	detune   float64
	volumeDb float64
	clicks   int
}

// NewNullEngine 创建空引擎
func NewNullEngine() *NullEngine {
	return &NullEngine{monotonic: newMonotonic(), rate: 1.0}
}

// Load 只解析 WAV 头部以得到时长
func (e *NullEngine) Load(data []byte) (Info, error) {
	s, format, err := decode(data)
	if err != nil {
		return Info{}, err
	}
	defer s.Close()

	info := Info{
		Duration:   format.SampleRate.D(s.Len()).Seconds(),
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.info = info
	e.loaded = true
	e.playing = false
	return info, nil
}

func (e *NullEngine) Start(at, offset, duration float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return errNotLoaded
	}
	e.playing = true
	return nil
}

func (e *NullEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
}

func (e *NullEngine) SetPlaybackRate(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = rate
}

func (e *NullEngine) SetDetune(semitones float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detune = semitones
}

func (e *NullEngine) SetVolumeDb(db float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volumeDb = db
}

// Click 只计数
func (e *NullEngine) Click(accent bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clicks++
}

// Clicks 返回 Click 调用次数
func (e *NullEngine) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Playing 是否处于播放状态
func (e *NullEngine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *NullEngine) Close() {}
