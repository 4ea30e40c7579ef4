package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pbrusco/musicians-helper/model"
)

func TestMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProjectRepository()

	p := &model.Project{ID: "a", Name: "First"}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, &model.Project{ID: "a"}); err == nil {
		t.Error("duplicate id accepted")
	}

	got, err := repo.GetByID(ctx, "missing")
	if err != nil || got != nil {
		t.Errorf("missing project = %v, %v", got, err)
	}

	state := model.ProjectState{
		Measures:   []model.Measure{{Index: 1, Chords: "Am"}},
		GridConfig: model.DefaultGridConfig(),
		Params:     model.DefaultParams(),
	}
	if err := repo.SaveState(ctx, "a", state); err != nil {
		t.Fatal(err)
	}
	state.Measures[0].Chords = "mutated"

	got, _ = repo.GetByID(ctx, "a")
	if got.Measures[0].Chords != "Am" {
		t.Errorf("stored state aliases caller slice: %q", got.Measures[0].Chords)
	}
	if got.State().GridConfig.BPM != 120 {
		t.Errorf("grid = %+v", got.State().GridConfig)
	}

	if err := repo.SaveState(ctx, "missing", state); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := repo.SetAudio(ctx, "a", "take.wav", "audio/a/take.wav"); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.GetByID(ctx, "a")
	if !got.Meta().HasAudio || got.FileName != "take.wav" {
		t.Errorf("meta = %+v", got.Meta())
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if got, _ := repo.GetByID(ctx, "a"); got != nil {
		t.Error("project survived delete")
	}
}

func TestMemoryRepositoryListOrder(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryProjectRepository().(*memoryProjectRepository)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	_ = r.Create(ctx, &model.Project{ID: "old"})
	_ = r.Create(ctx, &model.Project{ID: "new"})
	_ = r.SaveState(ctx, "old", model.ProjectState{})

	list, _ := r.List(ctx)
	if len(list) != 2 || list[0].ID != "old" || list[1].ID != "new" {
		t.Errorf("order = %v, %v", list[0].ID, list[1].ID)
	}
}
