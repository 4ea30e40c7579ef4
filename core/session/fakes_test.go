package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pbrusco/musicians-helper/cache"
	"github.com/pbrusco/musicians-helper/core/audio"
	"github.com/pbrusco/musicians-helper/core/transport"
	"github.com/pbrusco/musicians-helper/model"
	"github.com/pbrusco/musicians-helper/repository"
)

// fakeEngine 由模拟时钟驱动的引擎，"bad" 数据解码失败
type fakeEngine struct {
	*transport.MockClock

	mu       sync.Mutex
	duration float64
	starts   int
	rate     float64
	detune   float64
	volume   float64
	clicks   int
	accents  int
	closed   bool
}

func newFakeEngine(duration float64) *fakeEngine {
	return &fakeEngine{MockClock: transport.NewMockClock(100), duration: duration, rate: 1}
}

func (e *fakeEngine) Load(data []byte) (audio.Info, error) {
	if string(data) == "bad" {
		return audio.Info{}, fmt.Errorf("decode wav: %w", model.ErrDecode)
	}
	return audio.Info{Duration: e.duration, SampleRate: 44100, Channels: 2}, nil
}

func (e *fakeEngine) Start(at, offset, duration float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	return nil
}

func (e *fakeEngine) Stop() {}

func (e *fakeEngine) SetPlaybackRate(rate float64) {
	e.mu.Lock()
	e.rate = rate
	e.mu.Unlock()
}

func (e *fakeEngine) SetDetune(semitones float64) {
	e.mu.Lock()
	e.detune = semitones
	e.mu.Unlock()
}

func (e *fakeEngine) SetVolumeDb(db float64) {
	e.mu.Lock()
	e.volume = db
	e.mu.Unlock()
}

func (e *fakeEngine) Click(accent bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clicks++
	if accent {
		e.accents++
	}
}

func (e *fakeEngine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

func (e *fakeEngine) counts() (clicks, accents int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks, e.accents
}

// fakeDrafts 内存草稿
type fakeDrafts struct {
	mu     sync.Mutex
	drafts map[string]*cache.Draft
	recent []string
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: make(map[string]*cache.Draft)}
}

func (d *fakeDrafts) SaveDraft(ctx context.Context, id string, state model.ProjectState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drafts[id] = &cache.Draft{ProjectID: id, State: state, SavedAt: time.Now()}
	return nil
}

func (d *fakeDrafts) GetDraft(ctx context.Context, id string) (*cache.Draft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drafts[id], nil
}

func (d *fakeDrafts) DeleteDraft(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.drafts, id)
	return nil
}

func (d *fakeDrafts) TouchRecent(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = append([]string{id}, d.recent...)
	return nil
}

func (d *fakeDrafts) Forget(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.drafts, id)
	return nil
}

func (d *fakeDrafts) has(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drafts[id] != nil
}

// fakeBlobs 内存音频存储
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) PutAudio(ctx context.Context, id, fileName string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := "audio/" + id + "/" + fileName
	b.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (b *fakeBlobs) GetAudio(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("audio %s: %w", key, model.ErrNotFound)
	}
	return data, nil
}

func (b *fakeBlobs) DeleteProject(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.objects {
		if len(key) > len("audio/"+id) && key[:len("audio/"+id)] == "audio/"+id {
			delete(b.objects, key)
		}
	}
	return nil
}

func (b *fakeBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// failingRepo SaveState 总是失败
type failingRepo struct {
	repository.ProjectRepository
}

func (failingRepo) SaveState(ctx context.Context, id string, state model.ProjectState) error {
	return errors.New("connection refused")
}

// quietOptions 测试中关闭后台节奏
func quietOptions() Options {
	return Options{AutosaveDelay: time.Hour, TickInterval: time.Hour}
}
