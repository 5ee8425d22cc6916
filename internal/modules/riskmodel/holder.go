package riskmodel

import (
	"sync/atomic"

	"github.com/tourguard/riskcast/internal/domain"
)

// Holder owns the active bundle. Readers take one snapshot per call, so a
// concurrent swap is never observed half-applied.
type Holder struct {
	current atomic.Pointer[Bundle]
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Snapshot returns the active bundle or ModelNotReadyError.
func (h *Holder) Snapshot() (*Bundle, error) {
	b := h.current.Load()
	if b == nil {
		return nil, &domain.ModelNotReadyError{}
	}
	return b, nil
}

// Ready reports whether a bundle is loaded.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}

// Swap installs b and returns the previous bundle.
func (h *Holder) Swap(b *Bundle) *Bundle {
	return h.current.Swap(b)
}
