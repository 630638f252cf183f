package repository

import (
	"context"
	"errors"
	"fmt"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	"MarketState/pkg/cache"
	xhttp "MarketState/pkg/http"
)

const settingsKey = "settings:account"

// CacheSettingsStore persists account settings in the cache layer without expiry.
type CacheSettingsStore struct {
	c cache.Service
}

func NewCacheSettingsStore(c cache.Service) *CacheSettingsStore {
	return &CacheSettingsStore{c: c}
}

// Get returns the stored settings, or the defaults when nothing was saved.
func (s *CacheSettingsStore) Get(ctx context.Context) (models.Settings, error) {
	var st models.Settings
	err := s.c.Get(ctx, settingsKey, &st)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.DefaultSettings(), fmt.Errorf("load settings: %w", err)
	}
	if xhttp.ValidateStruct(&st) != nil {
		return models.DefaultSettings(), nil
	}
	return st, nil
}

func (s *CacheSettingsStore) Save(ctx context.Context, st models.Settings) error {
	if err := xhttp.ValidateStruct(&st); err != nil {
		return err
	}
	if err := s.c.Set(ctx, settingsKey, st, cache.NoExpiration); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

var _ domrepo.SettingsStore = (*CacheSettingsStore)(nil)

// CacheMACDStateStore keeps incremental MACD snapshots keyed by ticker and interval.
type CacheMACDStateStore struct {
	c cache.Service
}

func NewCacheMACDStateStore(c cache.Service) *CacheMACDStateStore {
	return &CacheMACDStateStore{c: c}
}

// Load returns nil without error when no snapshot exists.
func (s *CacheMACDStateStore) Load(ctx context.Context, key string) (*models.MACDSnapshot, error) {
	var snap models.MACDSnapshot
	err := s.c.Get(ctx, cache.GenerateKey("macd", key), &snap)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *CacheMACDStateStore) Store(ctx context.Context, key string, snap models.MACDSnapshot) error {
	return s.c.Set(ctx, cache.GenerateKey("macd", key), snap, cache.NoExpiration)
}

var _ domrepo.MACDStateStore = (*CacheMACDStateStore)(nil)
