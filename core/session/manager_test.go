package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pbrusco/musicians-helper/cache"
	"github.com/pbrusco/musicians-helper/core/editing"
	"github.com/pbrusco/musicians-helper/model"
	"github.com/pbrusco/musicians-helper/repository"
)

type managerFixture struct {
	manager *Manager
	repo    repository.ProjectRepository
	drafts  *fakeDrafts
	blobs   *fakeBlobs
	engine  *fakeEngine
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		repo:   repository.NewMemoryProjectRepository(),
		drafts: newFakeDrafts(),
		blobs:  newFakeBlobs(),
		engine: newFakeEngine(20),
	}
	f.manager = NewManager(Store{Projects: f.repo, Drafts: f.drafts, Blobs: f.blobs}, f.engine, quietOptions())
	t.Cleanup(func() { f.manager.Close(context.Background()) })
	return f
}

func TestManagerCreateAndList(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)

	p, err := f.manager.Create(ctx, "Blue in Green")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Measures) != editing.DefaultBlockSize {
		t.Errorf("new project measures = %d", len(p.Measures))
	}
	metas, err := f.manager.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 || metas[0].Name != "Blue in Green" || metas[0].HasAudio {
		t.Errorf("list = %+v", metas)
	}
}

func TestManagerOpenUnknownProject(t *testing.T) {
	f := newManagerFixture(t)
	if _, err := f.manager.Open(context.Background(), "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestManagerSwitchFlushesPreviousSession(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	a, _ := f.manager.Create(ctx, "a")
	b, _ := f.manager.Create(ctx, "b")

	sa, err := f.manager.Open(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	updates, _ := sa.Subscribe()
	sa.AddMeasures(4)

	sb, err := f.manager.Open(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if f.manager.Active() != sb {
		t.Fatal("active session not switched")
	}

	stored, _ := f.repo.GetByID(ctx, a.ID)
	if len(stored.Measures) != 8 {
		t.Errorf("previous project saved with %d measures, want 8", len(stored.Measures))
	}
	if dirty, _ := sa.Dirty(); dirty {
		t.Error("previous session still dirty")
	}

	// 旧会话的订阅被关闭，后续推进无效
	deadline := time.After(time.Second)
	for open := true; open; {
		select {
		case _, open = <-updates:
		case <-deadline:
			t.Fatal("subscription not closed")
		}
	}
	if ev := sa.Tick(); ev.String() != "none" {
		t.Errorf("closed session ticked: %v", ev)
	}
	if _, err := f.manager.Session(a.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("old session lookup err = %v", err)
	}
}

func TestManagerOpenPrefersNewerDraft(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	p, _ := f.manager.Create(ctx, "draft")

	f.drafts.drafts[p.ID] = &cache.Draft{
		ProjectID: p.ID,
		State: model.ProjectState{
			Measures:   []model.Measure{{Index: 1, Chords: "Dm7"}, {Index: 2, Chords: "G7"}},
			GridConfig: model.DefaultGridConfig(),
			Params:     model.DefaultParams(),
		},
		SavedAt: time.Now().Add(time.Hour),
	}

	s, err := f.manager.Open(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	v := s.View()
	if len(v.Measures) != 2 || v.Measures[0].Chords != "Dm7" {
		t.Fatalf("measures = %+v", v.Measures)
	}
	if !v.Dirty {
		t.Error("state restored from a draft should be dirty")
	}
	if len(f.drafts.recent) == 0 || f.drafts.recent[0] != p.ID {
		t.Errorf("recent = %v", f.drafts.recent)
	}
}

func TestManagerRestoresAudio(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	p, _ := f.manager.Create(ctx, "with audio")

	s, err := f.manager.Open(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.LoadAudio(ctx, []byte("wav"), "take.wav"); err != nil {
		t.Fatal(err)
	}
	if f.blobs.count() != 1 {
		t.Fatalf("blobs = %d", f.blobs.count())
	}

	other, _ := f.manager.Create(ctx, "other")
	if _, err := f.manager.Open(ctx, other.ID); err != nil {
		t.Fatal(err)
	}
	s, err = f.manager.Open(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	v := s.View()
	if !v.Audio.IsLoaded || v.Audio.FileName != "take.wav" || !v.Transport.Loaded {
		t.Errorf("audio not restored: %+v", v.Audio)
	}
	if len(v.Measures) != 10 {
		t.Errorf("measures = %d, want 10 to cover 20s", len(v.Measures))
	}
}

func TestManagerDelete(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	p, _ := f.manager.Create(ctx, "doomed")
	s, _ := f.manager.Open(ctx, p.ID)
	if err := s.LoadAudio(ctx, []byte("wav"), "take.wav"); err != nil {
		t.Fatal(err)
	}
	s.AddMeasures(1)

	if err := f.manager.Delete(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.repo.GetByID(ctx, p.ID); got != nil {
		t.Error("project still stored")
	}
	if f.blobs.count() != 0 {
		t.Error("audio not removed")
	}
	if f.drafts.has(p.ID) {
		t.Error("draft not removed")
	}
	if f.manager.Active() != nil {
		t.Error("deleted project still active")
	}
	if err := f.manager.Delete(ctx, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestManagerExportImportJSON(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	p, _ := f.manager.Create(ctx, "song")
	s, _ := f.manager.Open(ctx, p.ID)
	s.UpdateMeasureField(1, editing.FieldChords, "Cmaj7")
	s.AddMarker(3.5, "bridge", "")

	data, err := f.manager.ExportJSON(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"Cmaj7"`) || !strings.Contains(string(data), `"gridConfig"`) {
		t.Fatalf("export = %s", data)
	}

	imported, err := f.manager.ImportJSON(ctx, data, "copy")
	if err != nil {
		t.Fatal(err)
	}
	if imported.ID == p.ID || imported.Name != "copy" {
		t.Errorf("imported = %+v", imported.Meta())
	}
	state := imported.State()
	if state.Measures[0].Chords != "Cmaj7" || len(state.Markers) != 1 {
		t.Errorf("imported state = %+v", state)
	}

	if _, err := f.manager.ImportJSON(ctx, []byte(`{"measures": []}`), ""); !errors.Is(err, model.ErrValidation) {
		t.Errorf("missing gridConfig err = %v", err)
	}
	metas, _ := f.manager.List(ctx)
	if len(metas) != 2 {
		t.Errorf("failed import must not create a project, have %d", len(metas))
	}
}

func TestManagerRename(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	p, _ := f.manager.Create(ctx, "old")
	s, _ := f.manager.Open(ctx, p.ID)

	if err := f.manager.Rename(ctx, p.ID, "new"); err != nil {
		t.Fatal(err)
	}
	if s.Name() != "new" {
		t.Errorf("session name = %q", s.Name())
	}
	if err := f.manager.Rename(ctx, p.ID, ""); !errors.Is(err, model.ErrValidation) {
		t.Errorf("err = %v", err)
	}
}

func TestManagerSetDefaultGrid(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)

	cfg := model.DefaultGridConfig()
	cfg.BPM = 90
	cfg.TimeSigTop = 3
	f.manager.SetDefaultGrid(cfg)

	p, err := f.manager.Create(ctx, "waltz")
	if err != nil {
		t.Fatal(err)
	}
	got := p.State().GridConfig
	if got.BPM != 90 || got.TimeSigTop != 3 {
		t.Errorf("grid = %+v", got)
	}
}
