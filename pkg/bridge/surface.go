package bridge

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"tilebridge/pkg/logger"
	"tilebridge/pkg/state"
)

// NoSurfaceGroup is returned for a (desktop, screen) cell that was never
// assigned. Real group ids are non-negative. Set does not reject negative
// ids, so setting a cell to NoSurfaceGroup reads back as unassigned.
const NoSurfaceGroup = -1

// SurfaceGroupIndex maps (desktop, screen) pairs to a group id. Pairs are
// not validated against the live topology; an unknown pair is just a new cell.
type SurfaceGroupIndex struct {
	log *logger.Logger
	kv  state.KV
	mu  sync.Mutex
}

// NewSurfaceGroupIndex binds an index to the surface namespace of kv.
func NewSurfaceGroupIndex(kv state.KV, log *logger.Logger) *SurfaceGroupIndex {
	if log == nil {
		log = logger.NewNop()
	}
	return &SurfaceGroupIndex{
		log: log,
		kv:  state.Namespaced(kv, string(NamespaceSurface)),
	}
}

// SurfaceKey is the storage key of a cell.
func SurfaceKey(desktop, screen int) string {
	return strconv.Itoa(desktop) + ":" + strconv.Itoa(screen)
}

// Get returns the group of a cell or NoSurfaceGroup.
func (x *SurfaceGroupIndex) Get(ctx context.Context, desktop, screen int) (int, error) {
	key := SurfaceKey(desktop, screen)

	x.mu.Lock()
	raw, ok, err := x.kv.Get(ctx, key)
	x.mu.Unlock()

	if err != nil {
		return NoSurfaceGroup, fmt.Errorf("get surface group %s: %w", key, err)
	}
	if !ok {
		return NoSurfaceGroup, nil
	}

	group, err := strconv.Atoi(raw)
	if err != nil {
		x.log.Warn("Ignoring unparsable surface group",
			zap.String("cell", key),
			zap.String("value", raw))
		return NoSurfaceGroup, nil
	}
	return group, nil
}

// Set assigns a cell unconditionally.
func (x *SurfaceGroupIndex) Set(ctx context.Context, desktop, screen, group int) error {
	key := SurfaceKey(desktop, screen)

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.kv.Set(ctx, key, strconv.Itoa(group)); err != nil {
		return fmt.Errorf("set surface group %s: %w", key, err)
	}
	return nil
}
