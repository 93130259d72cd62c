// Package document holds the in-memory petition handle the workflow
// keeps between generation and download.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// ContentType of generated petitions.
const ContentType = "application/pdf"

// Handle wraps the generated petition bytes. It is single-release: the
// workflow guarantees at most one live handle per instance, and Release
// frees the bytes so repeated generations in one session do not pile up
// multi-megabyte PDFs.
type Handle struct {
	mu       sync.Mutex
	caseID   int
	data     []byte
	checksum string
	released bool
}

// NewHandle takes ownership of the generated document bytes.
func NewHandle(caseID int, data []byte) (*Handle, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document for case %d", caseID)
	}
	sum := sha256.Sum256(data)
	return &Handle{
		caseID:   caseID,
		data:     data,
		checksum: hex.EncodeToString(sum[:]),
	}, nil
}

// Bytes returns the document content. Fails after Release.
func (h *Handle) Bytes() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, fmt.Errorf("document for case %d already released", h.caseID)
	}
	return h.data, nil
}

// Size returns the document length in bytes, 0 once released.
func (h *Handle) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.data)
}

// Checksum returns the sha256 of the content, stable across Release.
func (h *Handle) Checksum() string {
	return h.checksum
}

// Filename is the download name the original console used.
func (h *Handle) Filename() string {
	return fmt.Sprintf("demanda-divorcio-caso-%d.pdf", h.caseID)
}

// Release frees the content. Returns true on the first call, false on
// any subsequent one.
func (h *Handle) Release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	h.released = true
	h.data = nil
	return true
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
