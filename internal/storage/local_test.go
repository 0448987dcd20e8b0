package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	ref, err := s.Save(ctx, "uploads/ab/in.mp4", strings.NewReader("media bytes"), -1)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	size, err := s.Stat(ctx, ref)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if size != int64(len("media bytes")) {
		t.Errorf("unexpected size %d", size)
	}

	rc, err := s.Open(ctx, ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "media bytes" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestLocalStore_StatMissing(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir())
	if _, err := s.Stat(context.Background(), "nope/missing.mp4"); err == nil {
		t.Error("expected error for missing blob")
	}
}

func TestLocalStore_RejectsEscapingRefs(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir())
	ctx := context.Background()

	for _, ref := range []string{"../outside", "/etc/passwd", "a/../../b"} {
		if _, err := s.Stat(ctx, ref); err == nil {
			t.Errorf("expected ref %q to be rejected", ref)
		}
	}
}

func TestLocalStore_Fetch(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir())
	ctx := context.Background()

	ref, err := s.Save(ctx, "in.wav", strings.NewReader("pcm"), -1)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "copy.wav")
	if err := s.Fetch(ctx, ref, dst); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read fetched copy: %v", err)
	}
	if string(data) != "pcm" {
		t.Errorf("unexpected fetched content %q", data)
	}
}

func TestLocalStore_RemoveIdempotent(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir())
	ctx := context.Background()

	ref, _ := s.Save(ctx, "gone.srt", strings.NewReader("1\n"), -1)
	if err := s.Remove(ctx, ref); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, ref); err != nil {
		t.Errorf("second remove must not error: %v", err)
	}
}
