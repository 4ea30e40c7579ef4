package model

// Params 播放参数（随项目一起持久化）
type Params struct {
	Speed             float64 `json:"speed"`    // 播放速率，1.0 为原速
	Detune            float64 `json:"detune"`   // 变调（半音）
	VolumeDb          float64 `json:"volumeDb"` // 音量（dB）
	Metronome         bool    `json:"metronome"`
	MetronomeVolumeDb float64 `json:"metronomeVolumeDb"`
}

// DefaultParams 默认播放参数
func DefaultParams() Params {
	return Params{Speed: 1.0, MetronomeVolumeDb: -6}
}

// RegionSelection 用户选择的播放/编辑区间
type RegionSelection struct {
	Active bool    `json:"active"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}

// LoopState 循环状态，Start/End 均设置且 Active 时在 End 处回到 Start
type LoopState struct {
	Active bool     `json:"active"`
	Start  *float64 `json:"start"`
	End    *float64 `json:"end"`
}

// Ready 循环区间是否完整可用
func (l LoopState) Ready() bool {
	return l.Active && l.Start != nil && l.End != nil && *l.End > *l.Start
}

// AudioState 音频加载与播放状态
type AudioState struct {
	IsLoaded    bool    `json:"isLoaded"`
	IsPlaying   bool    `json:"isPlaying"`
	Duration    float64 `json:"duration"`
	CurrentTime float64 `json:"currentTime"`
	FileName    string  `json:"fileName"`
	Error       string  `json:"error,omitempty"` // 加载/播放失败时的提示信息
}
