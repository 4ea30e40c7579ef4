package transport

import (
	"fmt"

	"github.com/pbrusco/musicians-helper/model"
)

// State 传输状态
type State int

const (
	Stopped State = iota
	Playing
	PlayingLooped
	PlayingRegion
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case PlayingLooped:
		return "playing-looped"
	case PlayingRegion:
		return "playing-region"
	default:
		return "stopped"
	}
}

// MarshalText 以字符串形式序列化状态
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 解析 MarshalText 的输出
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Stopped, Playing, PlayingLooped, PlayingRegion} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown transport state %q: %w", text, model.ErrValidation)
}

// IsPlaying 是否处于任一播放状态
func (s State) IsPlaying() bool {
	return s != Stopped
}

// Event Tick 期间发生的事件
type Event int

const (
	EventNone Event = iota
	EventEnded
	EventLooped
	EventRegionDone
)

func (e Event) String() string {
	switch e {
	case EventEnded:
		return "ended"
	case EventLooped:
		return "looped"
	case EventRegionDone:
		return "region-done"
	default:
		return "none"
	}
}

// Status 传输状态快照
type Status struct {
	State    State                 `json:"state"`
	Loaded   bool                  `json:"loaded"`
	Position float64               `json:"position"`
	Duration float64               `json:"duration"`
	Rate     float64               `json:"rate"`
	Detune   float64               `json:"detune"`
	VolumeDb float64               `json:"volumeDb"`
	Loop     model.LoopState       `json:"loop"`
	Region   model.RegionSelection `json:"region"`
	Error    string                `json:"error,omitempty"`
}
