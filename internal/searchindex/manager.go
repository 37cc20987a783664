package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/runbookd/runbookd/internal/cache"
)

// EntityTypeConfig configures one entity type's index.
type EntityTypeConfig struct {
	EntityType string
	Mode       Mode
}

// Manager owns one Index per entity type and optionally mirrors refreshed
// document sets into a warm cache (internal/cache) so a freshly started
// daemon replica can serve searches before its own refresh completes.
type Manager struct {
	mu      sync.RWMutex
	indexes map[string]*Index

	fuzzyPrefixMaxLen int
	maxEditDistance   int
	defaultLimit      int

	warmCache cache.Cache // optional; nil disables mirroring
}

// NewManager builds a Manager. warmCache may be nil.
func NewManager(fuzzyPrefixMaxLen, maxEditDistance, defaultLimit int, warmCache cache.Cache) *Manager {
	return &Manager{
		indexes:           make(map[string]*Index),
		fuzzyPrefixMaxLen: fuzzyPrefixMaxLen,
		maxEditDistance:   maxEditDistance,
		defaultLimit:      defaultLimit,
		warmCache:         warmCache,
	}
}

// Register declares an entity type's matching mode, creating its Index if
// one does not already exist. Idempotent.
func (m *Manager) Register(cfg EntityTypeConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[cfg.EntityType]; ok {
		return
	}
	m.indexes[cfg.EntityType] = New(cfg.EntityType, cfg.Mode, m.fuzzyPrefixMaxLen, m.maxEditDistance)
}

func (m *Manager) get(entityType string) (*Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[entityType]
	return idx, ok
}

// Refresh swaps the document set for entityType and, if a warm cache is
// configured, mirrors it so other replicas can restore without a full
// re-index.
func (m *Manager) Refresh(ctx context.Context, entityType string, records []Record) error {
	idx, ok := m.get(entityType)
	if !ok {
		return fmt.Errorf("searchindex: unregistered entity type %q", entityType)
	}
	idx.Refresh(records)

	if m.warmCache != nil {
		blob, err := json.Marshal(records)
		if err == nil {
			_ = m.warmCache.Set(ctx, warmCacheKey(entityType), blob, 0)
		}
	}
	return nil
}

// RestoreFromWarmCache loads a mirrored document set for entityType from
// the warm cache, if present, without requiring the authoritative source
// to recompute it. Used at daemon startup.
func (m *Manager) RestoreFromWarmCache(ctx context.Context, entityType string) error {
	if m.warmCache == nil {
		return nil
	}
	idx, ok := m.get(entityType)
	if !ok {
		return fmt.Errorf("searchindex: unregistered entity type %q", entityType)
	}
	blob, err := m.warmCache.Get(ctx, warmCacheKey(entityType))
	if err != nil {
		return err
	}
	var records []Record
	if err := json.Unmarshal(blob, &records); err != nil {
		return err
	}
	idx.Refresh(records)
	return nil
}

func warmCacheKey(entityType string) string {
	return "runbookd:searchindex:" + entityType
}

// ResolveRef implements internal/validator.RefResolver: it resolves a
// Ref(kind) argument's display text to an entity id via the best-scoring
// search match, surfacing the top candidates as suggestions on a miss.
func (m *Manager) ResolveRef(refKind, query string) (id string, suggestions []string, found bool) {
	matches, err := m.Search(refKind, query, 5)
	if err != nil || len(matches) == 0 {
		return "", nil, false
	}
	top := matches[0]
	for _, mt := range matches {
		suggestions = append(suggestions, mt.Display)
	}
	return top.Token, suggestions, true
}

// IsReady reports whether entityType's index has completed a refresh.
func (m *Manager) IsReady(entityType string) bool {
	idx, ok := m.get(entityType)
	return ok && idx.IsReady()
}

// Search runs a query against entityType's index. limit<=0 uses the
// manager's configured default.
func (m *Manager) Search(entityType, query string, limit int) ([]Match, error) {
	idx, ok := m.get(entityType)
	if !ok {
		return nil, fmt.Errorf("searchindex: unregistered entity type %q", entityType)
	}
	if limit <= 0 {
		limit = m.defaultLimit
	}
	return idx.Search(query, limit), nil
}
