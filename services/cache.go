package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shelf-guard/models"
)

// CacheEntry ist ein Cache-Eintrag samt Schreibzeitpunkt. Gültig nur,
// solange now - LastUpdated < TTL; abgelaufene Einträge gelten als abwesend.
type CacheEntry struct {
	Payload     MatchResult `json:"payload"`
	LastUpdated time.Time   `json:"last_updated"`
}

// cacheTier ist die Capability-Schnittstelle einer Cache-Ebene.
// Zwei austauschbare Implementierungen (flüchtig, Redis) werden vom
// CacheStore komponiert; Fehlerbehandlung lebt im Koordinator, nie im Caller.
type cacheTier interface {
	Get(ctx context.Context, key string) (CacheEntry, bool)
	Put(ctx context.Context, key string, entry CacheEntry) error
	Invalidate(ctx context.Context, key string) error
}

// memoryTier ist die prozesslokale Ebene (fast path).
type memoryTier struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

func newMemoryTier() *memoryTier {
	return &memoryTier{entries: make(map[string]CacheEntry)}
}

func (t *memoryTier) Get(_ context.Context, key string) (CacheEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key]
	return e, ok
}

func (t *memoryTier) Put(_ context.Context, key string, entry CacheEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = entry
	return nil
}

func (t *memoryTier) Invalidate(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	return nil
}

// sweep entfernt alle Einträge, deren LastUpdated vor cutoff liegt.
func (t *memoryTier) sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, e := range t.entries {
		if e.LastUpdated.Before(cutoff) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// redisTier ist die durable Ebene; Redis-eigene Expiry deckt die TTL ab.
type redisTier struct {
	rdb *goredis.Client
	ttl time.Duration
}

const cacheKeyPrefix = "product:"

func (t *redisTier) Get(ctx context.Context, key string) (CacheEntry, bool) {
	raw, err := t.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		return CacheEntry{}, false
	}
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return CacheEntry{}, false
	}
	return entry, true
}

func (t *redisTier) Put(ctx context.Context, key string, entry CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return t.rdb.Set(ctx, cacheKeyPrefix+key, raw, t.ttl).Err()
}

func (t *redisTier) Invalidate(ctx context.Context, key string) error {
	return t.rdb.Del(ctx, cacheKeyPrefix+key).Err()
}

// CacheStore koordiniert die prozesslokale und die durable Cache-Ebene,
// jeweils gekeyt nach ExternalID. Der Cache ist eine reine Optimierung:
// Ausfall der durable Ebene degradiert still auf prozesslokalen Betrieb,
// ein voller Miss führt beim Aufrufer zur Neuberechnung.
type CacheStore struct {
	mem     *memoryTier
	durable cacheTier // nil ohne Redis
	db      *gorm.DB
	ttl     time.Duration
	logger  *zap.Logger

	// now ist austauschbar für Tests der TTL-Grenzen.
	now func() time.Time
}

// NewCacheStore erstellt den zweistufigen Cache. rdb darf nil sein.
func NewCacheStore(db *gorm.DB, rdb *goredis.Client, ttl time.Duration, logger *zap.Logger) *CacheStore {
	store := &CacheStore{
		mem:    newMemoryTier(),
		db:     db,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
	if rdb != nil {
		store.durable = &redisTier{rdb: rdb, ttl: ttl}
	}
	return store
}

// NewRedisClient verbindet sich zu Redis und prüft die Verbindung per Ping.
// Ein Fehler ist kein Startup-Abbruch: der Aufrufer darf mit nil weiterlaufen.
func NewRedisClient(addr, password string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (s *CacheStore) expired(entry CacheEntry) bool {
	return s.now().Sub(entry.LastUpdated) >= s.ttl
}

// Get liefert den Cache-Eintrag zu einer ExternalID. Abgelaufene Einträge
// werden beim Lesen evicted (lazy); ein gültiger durable Treffer wird in die
// prozesslokale Ebene promotet.
func (s *CacheStore) Get(ctx context.Context, externalID string) (*MatchResult, bool) {
	if entry, ok := s.mem.Get(ctx, externalID); ok {
		if s.expired(entry) {
			_ = s.mem.Invalidate(ctx, externalID)
		} else {
			return &entry.Payload, true
		}
	}

	if s.durable == nil {
		return nil, false
	}
	entry, ok := s.durable.Get(ctx, externalID)
	if !ok || s.expired(entry) {
		return nil, false
	}
	if err := s.mem.Put(ctx, externalID, entry); err == nil {
		s.logger.Debug("Cache-Eintrag aus durable Ebene promotet", zap.String("external_id", externalID))
	}
	return &entry.Payload, true
}

// Put schreibt durch beide Ebenen mit LastUpdated = now.
func (s *CacheStore) Put(ctx context.Context, externalID string, payload MatchResult) {
	entry := CacheEntry{Payload: payload, LastUpdated: s.now()}
	_ = s.mem.Put(ctx, externalID, entry)
	if s.durable != nil {
		if err := s.durable.Put(ctx, externalID, entry); err != nil {
			s.logger.Warn("Durable Cache-Write fehlgeschlagen, nur prozesslokal gecacht",
				zap.String("external_id", externalID), zap.Error(err))
		}
	}
}

// Invalidate entfernt einen Eintrag aus beiden Ebenen (manuelles Cache-Busting).
func (s *CacheStore) Invalidate(ctx context.Context, externalID string) {
	_ = s.mem.Invalidate(ctx, externalID)
	if s.durable != nil {
		if err := s.durable.Invalidate(ctx, externalID); err != nil {
			s.logger.Warn("Durable Invalidate fehlgeschlagen", zap.String("external_id", externalID), zap.Error(err))
		}
	}
}

// SweepExpired entfernt abgelaufene Einträge aus der prozesslokalen Ebene.
// Die Redis-Ebene räumt über ihre native Expiry selbst auf. Nebenläufige
// Reads racen höchstens harmlos in einen Miss.
func (s *CacheStore) SweepExpired() int {
	removed := s.mem.sweep(s.now().Add(-s.ttl))
	if removed > 0 {
		s.logger.Info("Cache-Sweep abgeschlossen", zap.Int("removed", removed))
	}
	return removed
}

// FindByIngredientsHash sucht über den Sekundärindex der Snapshot-Tabelle den
// ersten aktuellen, nicht abgelaufenen Snapshot mit diesem Hash. Das spart
// das Re-Matching identischer Zutatentexte anderer Listings.
func (s *CacheStore) FindByIngredientsHash(ctx context.Context, hash string) (*models.ProductGroup, *models.IngredientSnapshot, error) {
	if s.db == nil {
		return nil, nil, nil
	}
	cutoff := s.now().Add(-s.ttl)

	var snapshot models.IngredientSnapshot
	err := s.db.WithContext(ctx).
		Where("ingredients_hash = ? AND is_current = ? AND last_updated > ?", hash, true, cutoff).
		Order("last_updated desc").
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var group models.ProductGroup
	if err := s.db.WithContext(ctx).First(&group, snapshot.ProductGroupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return &group, &snapshot, nil
}
