package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pbrusco/musicians-helper/core/audio"
	"github.com/pbrusco/musicians-helper/core/session"
	"github.com/pbrusco/musicians-helper/model"
	"github.com/pbrusco/musicians-helper/repository"
)

func newTestPlayer(t *testing.T) *player {
	t.Helper()
	m := session.NewManager(
		session.Store{Projects: repository.NewMemoryProjectRepository()},
		audio.NewNullEngine(),
		session.Options{AutosaveDelay: time.Hour, TickInterval: time.Hour},
	)
	t.Cleanup(func() { m.Close(context.Background()) })

	sess, err := openForPlay(context.Background(), m, nil)
	if err != nil {
		t.Fatalf("openForPlay: %v", err)
	}

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	screen.SetSize(100, 30)
	t.Cleanup(screen.Fini)
	return newPlayer(sess, screen)
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestPlayerQuitKeys(t *testing.T) {
	p := newTestPlayer(t)
	if p.handleKey(runeKey('q')) {
		t.Error("q should quit")
	}
	if p.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Error("esc should quit")
	}
	if !p.handleKey(runeKey('x')) {
		t.Error("unbound key should not quit")
	}
}

func TestPlayerTransposeUndo(t *testing.T) {
	p := newTestPlayer(t)
	key := p.sess.View().GridConfig.KeySignature

	p.handleKey(runeKey('u'))
	if p.msg == "" {
		t.Error("undo on fresh project should report nothing to undo")
	}

	p.handleKey(runeKey('t'))
	if got := p.sess.View().GridConfig.KeySignature; got == key {
		t.Fatalf("key after transpose = %q", got)
	}
	p.handleKey(runeKey('u'))
	if p.msg != "" {
		t.Errorf("msg = %q", p.msg)
	}
	if got := p.sess.View().GridConfig.KeySignature; got != key {
		t.Errorf("key after undo = %q, want %q", got, key)
	}
}

func TestPlayerSpeedAndMetronome(t *testing.T) {
	p := newTestPlayer(t)
	p.handleKey(runeKey('+'))
	p.handleKey(runeKey('+'))
	p.handleKey(runeKey('-'))
	if got := p.sess.View().Params.Speed; got != 1.05 {
		t.Errorf("speed = %v", got)
	}

	p.handleKey(runeKey('m'))
	if !p.sess.View().Params.Metronome {
		t.Error("metronome should be on")
	}
	p.handleKey(runeKey('m'))
	if p.sess.View().Params.Metronome {
		t.Error("metronome should be off")
	}
}

func TestPlayerDraw(t *testing.T) {
	p := newTestPlayer(t)
	p.draw()
	p.handleKey(runeKey('['))
	p.draw()
}

func TestFormatClock(t *testing.T) {
	cases := map[float64]string{
		0:     "0:00.0",
		5.3:   "0:05.3",
		61.5:  "1:01.5",
		-3:    "0:00.0",
		600.0: "10:00.0",
	}
	for in, want := range cases {
		if got := formatClock(in); got != want {
			t.Errorf("formatClock(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestLoopLabel(t *testing.T) {
	if got := loopLabel(model.LoopState{}); got != "" {
		t.Errorf("empty loop = %q", got)
	}
	start, end := 2.0, 65.0
	got := loopLabel(model.LoopState{Active: true, Start: &start, End: &end})
	if got != "循环 [0:02.0 - 1:05.0] 开" {
		t.Errorf("loop = %q", got)
	}
	got = loopLabel(model.LoopState{Start: &start})
	if got != "循环 [0:02.0 - --] 关" {
		t.Errorf("half loop = %q", got)
	}
}
