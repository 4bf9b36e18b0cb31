package repo

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goban/internal/bootstrap"
	errs "goban/internal/errors"
)

// RecordRepository keeps the SGF record of the running game under one redis key.
type RecordRepository struct {
	cfg   bootstrap.Config
	log   *zap.SugaredLogger
	redis *redis.Client
}

func NewRecordRepository(cfg bootstrap.Config, log *zap.SugaredLogger, redis *redis.Client) *RecordRepository {
	return &RecordRepository{
		cfg:   cfg,
		log:   log,
		redis: redis,
	}
}

func (r *RecordRepository) SaveRecord(ctx context.Context, sgfText string) error {
	if err := r.redis.Set(ctx, r.cfg.RecordKey, sgfText, 0).Err(); err != nil {
		return err
	}
	r.log.Debugf("record saved to %s (%d bytes)", r.cfg.RecordKey, len(sgfText))
	return nil
}

func (r *RecordRepository) LoadRecord(ctx context.Context) (string, error) {
	sgfText, err := r.redis.Get(ctx, r.cfg.RecordKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", errs.ErrRecordNotFound
	}
	return sgfText, err
}

// MemoryRecordRepository is used when no redis address is configured.
type MemoryRecordRepository struct {
	mu      sync.RWMutex
	sgfText string
	saved   bool
}

func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{}
}

func (m *MemoryRecordRepository) SaveRecord(_ context.Context, sgfText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sgfText = sgfText
	m.saved = true
	return nil
}

func (m *MemoryRecordRepository) LoadRecord(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.saved {
		return "", errs.ErrRecordNotFound
	}
	return m.sgfText, nil
}
