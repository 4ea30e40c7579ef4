package transport

import (
	"sync"
	"time"
)

// Clock 单调时钟，单位秒
type Clock interface {
	Now() float64
}

// Player 传输控制器驱动的音频播放端
// duration 为 0 表示播放到结尾。
type Player interface {
	Clock
	Start(at, offset, duration float64) error
	Stop()
	SetPlaybackRate(rate float64)
	SetDetune(semitones float64)
	SetVolumeDb(db float64)
}

// SystemClock 基于 time.Now 的单调时钟
type SystemClock struct {
	origin time.Time
}

// NewSystemClock 创建从当前时刻开始计时的时钟
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// Now 返回自创建以来经过的秒数
func (c *SystemClock) Now() float64 {
	return time.Since(c.origin).Seconds()
}

// MockClock 可控时钟，用于测试
type MockClock struct {
	mu  sync.RWMutex
	now float64
}

// NewMockClock 创建起始于 start 秒的时钟
func NewMockClock(start float64) *MockClock {
	return &MockClock{now: start}
}

// Now 返回当前模拟时间
func (m *MockClock) Now() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set 设置当前模拟时间
func (m *MockClock) Set(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance 将模拟时间推进 d 秒
func (m *MockClock) Advance(d float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
}
