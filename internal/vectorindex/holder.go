package vectorindex

import "sync/atomic"

// Holder publishes the active Index. Readers take a snapshot with Current and keep
// using it even if a rebuild swaps in a new Index meanwhile.
type Holder struct {
	current atomic.Pointer[Index]
}

// NewHolder creates a Holder, optionally seeded with an index.
func NewHolder(idx *Index) *Holder {
	h := &Holder{}
	if idx != nil {
		h.current.Store(idx)
	}
	return h
}

// Current returns the active index, or nil when none is loaded.
func (h *Holder) Current() *Index {
	return h.current.Load()
}

// Swap installs idx and returns the previous index.
func (h *Holder) Swap(idx *Index) *Index {
	return h.current.Swap(idx)
}

// Ready reports whether an index is loaded.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}

// Size returns the number of entries in the active index, or zero.
func (h *Holder) Size() int {
	if idx := h.current.Load(); idx != nil {
		return idx.Len()
	}
	return 0
}
