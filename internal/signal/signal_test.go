package signal

import (
	"testing"
)

func TestStopSignal(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if w.ShouldStop() {
		t.Error("ShouldStop() = true before any signal")
	}

	if err := w.SendStop(); err != nil {
		t.Fatalf("SendStop() error = %v", err)
	}
	if !w.ShouldStop() {
		t.Error("ShouldStop() = false after SendStop")
	}
}

func TestPauseSignal(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if w.ShouldPause() {
		t.Error("ShouldPause() = true before any signal")
	}

	if err := w.SendPause(); err != nil {
		t.Fatalf("SendPause() error = %v", err)
	}
	if !w.ShouldPause() {
		t.Error("ShouldPause() = false after SendPause")
	}
}

func TestClearResetsSignals(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := w.SendStop(); err != nil {
		t.Fatalf("SendStop() error = %v", err)
	}
	if err := w.SendPause(); err != nil {
		t.Fatalf("SendPause() error = %v", err)
	}
	if !w.ShouldStop() || !w.ShouldPause() {
		t.Fatal("signals not registered before Clear")
	}

	w.Clear()

	if w.ShouldStop() {
		t.Error("ShouldStop() = true after Clear")
	}
	if w.ShouldPause() {
		t.Error("ShouldPause() = true after Clear")
	}
}
