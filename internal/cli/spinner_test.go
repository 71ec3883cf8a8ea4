package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSpinnerBasic(t *testing.T) {
	s := newSpinner("Testing...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if s.Cancelled() {
		t.Error("Cancelled() = true after a plain Stop, want false")
	}
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Testing with context...")
	s.Start()
	cancel()

	select {
	case <-s.stopped:
	case <-time.After(time.Second):
		t.Fatal("spinner did not stop after context cancellation")
	}
	if !s.Cancelled() {
		t.Error("Cancelled() = false after context cancellation, want true")
	}
	s.Stop()
}

func TestSpinnerWithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	s := newSpinnerWithContext(ctx, "Testing with timeout...")
	s.Start()
	time.Sleep(60 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Cancelled() = false after context timeout, want true")
	}
	s.Stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner("Testing idempotent stop...")
	s.Start()
	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s := newSpinner("never started")
	s.Stop()
	s.Start() // no-op after Stop
	s.Stop()
}

func TestSpinnerAnimates(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner("working")
	s.out = &buf
	s.animate = true

	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if !strings.Contains(buf.String(), "working") {
		t.Errorf("spinner output %q should contain the message", buf.String())
	}
}

func TestSpinnerQuietWhenNotAnimating(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner("quiet")
	s.out = &buf
	s.animate = false

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if buf.Len() != 0 {
		t.Errorf("non-animating spinner wrote %q", buf.String())
	}
}

func TestIsTerminal(t *testing.T) {
	devnull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer devnull.Close()

	file, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	tests := []struct {
		name string
		f    *os.File
	}{
		{"dev null", devnull},
		{"regular file", file},
		{"nil", nil},
	}
	for _, tt := range tests {
		if isTerminal(tt.f) {
			t.Errorf("isTerminal(%s) = true, want false", tt.name)
		}
	}
}

func TestSpinnerOnDevNull(t *testing.T) {
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer devnull.Close()

	stderr := os.Stderr
	os.Stderr = devnull
	defer func() { os.Stderr = stderr }()

	if s := newSpinner("Rendering..."); s.animate {
		t.Error("spinner animates when stderr is /dev/null")
	}
}
