package model

import (
	"github.com/google/uuid"
)

// Marker 用户放置的时间标记，与小节网格无关
type Marker struct {
	ID    string  `json:"id"`
	Time  float64 `json:"time"`
	Label string  `json:"label"`
	Color string  `json:"color,omitempty"`
}

// NewMarker 创建标记并分配唯一ID
func NewMarker(t float64, label, color string) Marker {
	if t < 0 {
		t = 0
	}
	return Marker{
		ID:    uuid.New().String(),
		Time:  t,
		Label: label,
		Color: color,
	}
}

// CloneMarkers 拷贝标记列表
func CloneMarkers(markers []Marker) []Marker {
	if markers == nil {
		return nil
	}
	out := make([]Marker, len(markers))
	copy(out, markers)
	return out
}
