package document

import (
	"bytes"
	"testing"
)

func TestNewHandle(t *testing.T) {
	content := []byte("%PDF-1.4 demanda")
	h, err := NewHandle(42, content)
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}

	got, err := h.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("content mismatch")
	}
	if h.Size() != len(content) {
		t.Errorf("Size = %d, want %d", h.Size(), len(content))
	}
	if h.Checksum() == "" {
		t.Error("expected checksum")
	}
	if h.Filename() != "demanda-divorcio-caso-42.pdf" {
		t.Errorf("Filename = %q", h.Filename())
	}
}

func TestNewHandleRejectsEmpty(t *testing.T) {
	if _, err := NewHandle(1, nil); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestReleaseOnce(t *testing.T) {
	h, err := NewHandle(7, []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}

	if !h.Release() {
		t.Error("first Release should return true")
	}
	if h.Release() {
		t.Error("second Release should return false")
	}
	if !h.Released() {
		t.Error("Released should report true")
	}
	if _, err := h.Bytes(); err == nil {
		t.Error("Bytes should fail after Release")
	}
	if h.Size() != 0 {
		t.Errorf("Size after release = %d", h.Size())
	}
	// Checksum survives release so audit rows can still reference it.
	if h.Checksum() == "" {
		t.Error("checksum lost on release")
	}
}
