package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/modules/riskmodel"
)

const latestKey = "latest"

// Mirror writes bundles to a local store and copies them to an object store.
// Reads fall back to the object store when the local store misses, which lets
// a fresh instance start from the last trained model.
type Mirror struct {
	local  Store
	remote ObjectStore
	prefix string
	log    zerolog.Logger
}

// NewMirror wraps local with a remote copy under prefix.
func NewMirror(local Store, remote ObjectStore, prefix string, log zerolog.Logger) *Mirror {
	return &Mirror{
		local:  local,
		remote: remote,
		prefix: prefix,
		log:    log.With().Str("component", "artifact_mirror").Logger(),
	}
}

func (m *Mirror) bundleKey(version string) string {
	return m.prefix + version + ".msgpack"
}

// Save implements Store. A failed upload is logged; the local copy is authoritative.
func (m *Mirror) Save(ctx context.Context, b *riskmodel.Bundle) (Handle, error) {
	h, err := m.local.Save(ctx, b)
	if err != nil {
		return Handle{}, err
	}

	if err := m.upload(ctx, b); err != nil {
		m.log.Error().Err(err).Str("version", b.Version).Msg("Failed to mirror bundle")
	}
	return h, nil
}

func (m *Mirror) upload(ctx context.Context, b *riskmodel.Bundle) error {
	data, err := b.Encode()
	if err != nil {
		return err
	}
	if err := m.remote.Put(ctx, m.bundleKey(b.Version), data); err != nil {
		return err
	}
	// pointer is written last so it never names a missing bundle
	return m.remote.Put(ctx, m.prefix+latestKey, []byte(b.Version))
}

// Load implements Store.
func (m *Mirror) Load(ctx context.Context, version string) (*riskmodel.Bundle, error) {
	b, err := m.local.Load(ctx, version)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return b, err
	}
	return m.restore(ctx, version)
}

// Latest implements Store.
func (m *Mirror) Latest(ctx context.Context) (*riskmodel.Bundle, error) {
	b, err := m.local.Latest(ctx)
	if err != nil || b != nil {
		return b, err
	}

	pointer, err := m.remote.Get(ctx, m.prefix+latestKey)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.restore(ctx, strings.TrimSpace(string(pointer)))
}

func (m *Mirror) restore(ctx context.Context, version string) (*riskmodel.Bundle, error) {
	data, err := m.remote.Get(ctx, m.bundleKey(version))
	if errors.Is(err, ErrObjectNotFound) {
		return nil, fmt.Errorf("bundle %s: %w", version, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	b, err := riskmodel.DecodeBundle(data)
	if err != nil {
		return nil, err
	}
	if _, err := m.local.Save(ctx, b); err != nil {
		m.log.Warn().Err(err).Str("version", version).Msg("Failed to cache restored bundle locally")
	}
	m.log.Info().Str("version", version).Msg("Restored bundle from object store")
	return b, nil
}
