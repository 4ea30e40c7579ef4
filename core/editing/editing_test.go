package editing

import (
	"reflect"
	"testing"

	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/model"
)

func numbered(chords ...string) []model.Measure {
	out := make([]model.Measure, len(chords))
	for i, c := range chords {
		out[i] = model.Measure{Index: i + 1, Chords: c}
	}
	return out
}

func chordsOf(measures []model.Measure) []string {
	out := make([]string, len(measures))
	for i, m := range measures {
		out[i] = m.Chords
	}
	return out
}

func assertDense(t *testing.T, measures []model.Measure) {
	t.Helper()
	for i, m := range measures {
		if m.Index != i+1 {
			t.Fatalf("index at position %d = %d, want %d", i, m.Index, i+1)
		}
	}
}

func TestDuplicateScenario(t *testing.T) {
	in := numbered("A", "B", "C")
	out, sel := Duplicate(in, []int{2})

	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	assertDense(t, out)
	if got := chordsOf(out); !reflect.DeepEqual(got, []string{"A", "B", "B", "C"}) {
		t.Errorf("chords = %v", got)
	}
	if !reflect.DeepEqual(sel, []int{3}) {
		t.Errorf("selection = %v, want [3]", sel)
	}
	// 入参不被修改
	if len(in) != 3 || in[2].Chords != "C" {
		t.Errorf("input mutated: %+v", in)
	}
}

func TestDuplicateNonContiguousKeepsRubato(t *testing.T) {
	in := numbered("A", "B", "C", "D")
	in[0].Duration = model.Float(3.5)

	out, sel := Duplicate(in, []int{3, 1})
	if got := chordsOf(out); !reflect.DeepEqual(got, []string{"A", "B", "C", "A", "C", "D"}) {
		t.Fatalf("chords = %v", got)
	}
	if !reflect.DeepEqual(sel, []int{4, 5}) {
		t.Errorf("selection = %v, want [4 5]", sel)
	}
	if out[3].Duration == nil || *out[3].Duration != 3.5 {
		t.Errorf("duplicate lost rubato override: %+v", out[3])
	}
	*out[3].Duration = 1
	if *out[0].Duration != 3.5 {
		t.Errorf("duplicate shares duration pointer with original")
	}
}

func TestDuplicateEmptySelection(t *testing.T) {
	out, sel := Duplicate(numbered("A", "B"), []int{7})
	if len(out) != 2 || sel != nil {
		t.Errorf("got %d measures, selection %v", len(out), sel)
	}
}

func TestInsert(t *testing.T) {
	in := numbered("A", "B", "C")

	before := Insert(in, 2, Before)
	if got := chordsOf(before); !reflect.DeepEqual(got, []string{"A", "", "B", "C"}) {
		t.Errorf("before = %v", got)
	}
	assertDense(t, before)

	after := Insert(in, 3, After)
	if got := chordsOf(after); !reflect.DeepEqual(got, []string{"A", "B", "C", ""}) {
		t.Errorf("after = %v", got)
	}
	if after[3].Duration != nil {
		t.Errorf("inserted measure has an override")
	}

	empty := Insert(nil, 1, Before)
	if len(empty) != 1 || empty[0].Index != 1 {
		t.Errorf("insert into empty = %+v", empty)
	}
}

func TestDelete(t *testing.T) {
	in := numbered("A", "B", "C", "D")

	out, sel := Delete(in, 2, []int{1, 2, 4})
	if got := chordsOf(out); !reflect.DeepEqual(got, []string{"A", "C", "D"}) {
		t.Errorf("chords = %v", got)
	}
	assertDense(t, out)
	if !reflect.DeepEqual(sel, []int{1, 3}) {
		t.Errorf("selection = %v, want [1 3]", sel)
	}

	out, _ = Delete(in, 9, nil)
	if len(out) != 4 {
		t.Errorf("deleting a missing index changed the list")
	}
}

func TestDeleteLastMeasureIsNoOp(t *testing.T) {
	out, sel := Delete(numbered("A"), 1, []int{1})
	if len(out) != 1 || out[0].Chords != "A" {
		t.Errorf("last measure was removed: %+v", out)
	}
	if !reflect.DeepEqual(sel, []int{1}) {
		t.Errorf("selection = %v", sel)
	}
}

func TestAddBlock(t *testing.T) {
	out := AddBlock(numbered("A"), 0)
	if len(out) != 1+DefaultBlockSize {
		t.Fatalf("len = %d", len(out))
	}
	assertDense(t, out)

	out = AddBlock(out, 2)
	if len(out) != 3+DefaultBlockSize {
		t.Errorf("len = %d", len(out))
	}
}

func TestIndicesStayDense(t *testing.T) {
	list := AddBlock(nil, 6)
	steps := []func([]model.Measure) []model.Measure{
		func(l []model.Measure) []model.Measure { return Insert(l, 3, Before) },
		func(l []model.Measure) []model.Measure { out, _ := Delete(l, 1, nil); return out },
		func(l []model.Measure) []model.Measure { out, _ := Duplicate(l, []int{2, 5, 6}); return out },
		func(l []model.Measure) []model.Measure { return Insert(l, len(l), After) },
		func(l []model.Measure) []model.Measure { out, _ := Delete(l, len(l), nil); return out },
		func(l []model.Measure) []model.Measure { return AddBlock(l, 3) },
	}
	for i, step := range steps {
		list = step(list)
		for j, m := range list {
			if m.Index != j+1 {
				t.Fatalf("step %d: index at %d = %d", i, j, m.Index)
			}
		}
	}
}

func TestUpdateField(t *testing.T) {
	in := numbered("A", "B")

	out, ok := UpdateField(in, 2, FieldLyrics, "la la")
	if !ok || out[1].Lyrics != "la la" {
		t.Errorf("lyrics not set: %+v", out[1])
	}
	if in[1].Lyrics != "" {
		t.Errorf("input mutated")
	}
	if _, ok := UpdateField(in, 2, Field("tempo"), "x"); ok {
		t.Errorf("unknown field accepted")
	}
	if _, ok := UpdateField(in, 5, FieldChords, "x"); ok {
		t.Errorf("missing measure accepted")
	}
}

func TestSetDurationFloor(t *testing.T) {
	in := numbered("A", "B")

	if _, ok := SetDuration(in, 1, model.Float(0.05)); ok {
		t.Errorf("duration below floor accepted")
	}
	out, ok := SetDuration(in, 1, model.Float(2.5))
	if !ok || *out[0].Duration != 2.5 {
		t.Fatalf("duration not set")
	}
	out, _ = SetDuration(out, 1, nil)
	if out[0].Duration != nil {
		t.Errorf("override not cleared")
	}
}

func TestClearDurations(t *testing.T) {
	in := numbered("A", "B", "C")
	for i := range in {
		in[i].Duration = model.Float(1)
	}
	out := ClearDurations(in, []int{2})
	if out[0].Duration == nil || out[1].Duration != nil || out[2].Duration == nil {
		t.Errorf("selective clear wrong: %+v", out)
	}
	out = ClearDurations(in, nil)
	for _, m := range out {
		if m.HasOverride() {
			t.Errorf("measure %d kept its override", m.Index)
		}
	}
}

func TestApplyDrag(t *testing.T) {
	cfg := model.DefaultGridConfig()
	in := numbered("A", "B", "C")
	tl := grid.Build(in, cfg)

	out, ok := ApplyDrag(in, tl, 2, 5.0)
	if !ok || out[1].Duration == nil || *out[1].Duration != 3.0 {
		t.Fatalf("drag result = %+v, ok=%v", out[1], ok)
	}
	if _, ok := ApplyDrag(in, tl, 2, 2.05); ok {
		t.Errorf("drag below floor accepted")
	}
}

func TestTransposeAll(t *testing.T) {
	out := TransposeAll(numbered("Am7  D7", "F#/A#"), 3)
	if out[0].Chords != "Cm7  F7" || out[1].Chords != "A/C#" {
		t.Errorf("chords = %v", chordsOf(out))
	}
}

func TestSelectionHelpers(t *testing.T) {
	if got := SelectRange(4, 2); !reflect.DeepEqual(got, []int{2, 3, 4}) {
		t.Errorf("SelectRange = %v", got)
	}
	if got := Normalize([]int{3, 1, 3, 0, 9}, 5); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("Normalize = %v", got)
	}
	lo, hi, ok := Bounds([]int{5, 2, 7})
	if !ok || lo != 2 || hi != 7 {
		t.Errorf("Bounds = %d %d %v", lo, hi, ok)
	}
}

func TestRenumberSortsFirst(t *testing.T) {
	in := []model.Measure{{Index: 7, Chords: "G"}, {Index: 2, Chords: "C"}, {Index: 5, Chords: "F"}}
	out := Renumber(in)
	if got := chordsOf(out); !reflect.DeepEqual(got, []string{"C", "F", "G"}) {
		t.Fatalf("order = %v", got)
	}
	assertDense(t, out)
	if in[0].Index != 7 {
		t.Error("input mutated")
	}
}

func TestMeasureCountIsCapped(t *testing.T) {
	out := AddBlock(numbered("A"), 1_000_000_000)
	if len(out) != grid.MaxMeasures {
		t.Fatalf("AddBlock = %d measures, want %d", len(out), grid.MaxMeasures)
	}
	assertDense(t, out)

	more, idx := InsertAt(out, 1, Before)
	if len(more) != grid.MaxMeasures || idx != 0 {
		t.Errorf("InsertAt at cap = %d measures, index %d", len(more), idx)
	}

	dup, sel := Duplicate(out, []int{1, 2})
	if len(dup) != grid.MaxMeasures || !reflect.DeepEqual(sel, []int{1, 2}) {
		t.Errorf("Duplicate at cap = %d measures, selection %v", len(dup), sel)
	}
}

func TestInsertAtShiftsSelection(t *testing.T) {
	in := numbered("A", "B", "C")

	out, idx := InsertAt(in, 1, Before)
	if idx != 1 || len(out) != 4 {
		t.Fatalf("InsertAt = %d measures, index %d", len(out), idx)
	}
	sel := ShiftSelection([]int{1, 3}, idx, 1)
	if !reflect.DeepEqual(sel, []int{2, 4}) {
		t.Errorf("selection = %v, want [2 4]", sel)
	}
	if out[sel[1]-1].Chords != "C" {
		t.Errorf("shifted selection points at %q", out[sel[1]-1].Chords)
	}

	if _, idx := InsertAt(in, 3, After); idx != 4 {
		t.Errorf("insert after last = %d", idx)
	}
	if got := ShiftSelection([]int{1, 2}, 4, 1); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("selection before splice moved: %v", got)
	}
}
