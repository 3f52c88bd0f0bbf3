package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/kitchenstock/scanner/internal/domain"
)

const correctionKeyPrefix = "correction:"

// CorrectionService is the Correction Memory: it remembers which product the
// user picked for a given raw name and serves it back on later scans
type CorrectionService struct {
	store domain.KeyValueStore
	locks *keyedMutex
	now   func() time.Time
}

// NewCorrectionService creates a Correction Memory backed by the given store
func NewCorrectionService(store domain.KeyValueStore) *CorrectionService {
	return &CorrectionService{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// Lookup returns the stored correction for an already-normalized name,
// or nil when there is none
func (s *CorrectionService) Lookup(ctx context.Context, normalizedName string) (*domain.Correction, error) {
	if normalizedName == "" {
		return nil, nil
	}

	key := correctionKey(normalizedName)
	correction, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return correction, nil
}

// Record stores a user-confirmed mapping. Repeating the same mapping bumps
// Occurrences; mapping the same name to another product replaces the entry
// and starts counting again.
func (s *CorrectionService) Record(ctx context.Context, rawName, productID, productName string) error {
	normalized := NormalizeName(rawName)
	if normalized == "" || strings.TrimSpace(productID) == "" {
		return fmt.Errorf("%w: correction needs a raw name and a product id", domain.ErrInvalidRequest)
	}

	key := correctionKey(normalized)
	unlock := s.locks.Lock(key)
	defer unlock()

	existing, err := s.load(ctx, key)
	if err != nil {
		return err
	}

	correction := domain.Correction{
		RawNameNormalized: normalized,
		ProductID:         productID,
		ProductName:       productName,
		Occurrences:       1,
		LastUsedAt:        s.now().UTC(),
	}
	if existing != nil && existing.ProductID == productID {
		correction.Occurrences = existing.Occurrences + 1
	}

	data, err := json.Marshal(correction)
	if err != nil {
		return &domain.CorrectionStoreError{Key: key, Err: err}
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		return &domain.CorrectionStoreError{Key: key, Err: err}
	}

	log.Printf("[CORRECTIONS] %q → %s (%s), occurrences=%d", normalized, productID, productName, correction.Occurrences)
	return nil
}

// List returns every stored correction ordered by normalized name
func (s *CorrectionService) List(ctx context.Context) ([]domain.Correction, error) {
	keys, err := s.store.Keys(ctx, correctionKeyPrefix)
	if err != nil {
		return nil, &domain.CorrectionStoreError{Key: correctionKeyPrefix + "*", Err: err}
	}

	corrections := make([]domain.Correction, 0, len(keys))
	for _, key := range keys {
		c, err := s.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if c != nil {
			corrections = append(corrections, *c)
		}
	}
	return corrections, nil
}

func (s *CorrectionService) load(ctx context.Context, key string) (*domain.Correction, error) {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.CorrectionStoreError{Key: key, Err: err}
	}

	var correction domain.Correction
	if err := json.Unmarshal(data, &correction); err != nil {
		return nil, &domain.CorrectionStoreError{Key: key, Err: fmt.Errorf("decode: %w", err)}
	}
	return &correction, nil
}

func correctionKey(normalized string) string {
	return correctionKeyPrefix + normalized
}

// keyedMutex serializes work per key. Entries are dropped once nobody holds
// or waits on them, so the map does not grow with every name ever corrected.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock function
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
