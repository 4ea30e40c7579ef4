package audio

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/pbrusco/musicians-helper/model"
)

// 引擎类型
const (
	EngineBeep = "beep"
	EngineNull = "null"
)

// Info 已加载音频的基本信息
type Info struct {
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
}

// Engine 音频引擎
// Start 的 duration 为 0 表示播放到结尾；at 为引擎时钟上的启动时刻。
type Engine interface {
	Load(data []byte) (Info, error)
	Start(at, offset, duration float64) error
	Stop()
	SetPlaybackRate(rate float64)
	SetDetune(semitones float64)
	SetVolumeDb(db float64)
	Now() float64
	Click(accent bool)
	Close()
}

// New 按名称创建引擎，未知名称返回 NullEngine
func New(kind string, sampleRate int) Engine {
	switch kind {
	case EngineBeep:
		return NewBeepEngine(sampleRate)
	default:
		return NewNullEngine()
	}
}

// decode 解码 WAV 数据，失败时包装 ErrDecode
func decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(data) == 0 {
		return nil, beep.Format{}, fmt.Errorf("empty audio data: %w", model.ErrDecode)
	}
	s, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode wav: %v: %w", err, model.ErrDecode)
	}
	return s, format, nil
}

// monotonic 以创建时刻为原点的单调时钟
type monotonic struct {
	origin time.Time
}

func newMonotonic() monotonic {
	return monotonic{origin: time.Now()}
}

func (m monotonic) Now() float64 {
	return time.Since(m.origin).Seconds()
}
