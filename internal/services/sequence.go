package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plotledger_app/internal/models"
)

const (
	SequencePlotCode = "plot_code"
	SequenceUsername = "username"
)

// SequenceAllocator hands out unique, increasing numbers per sequence name
type SequenceAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// RedisSequence allocates with INCR
type RedisSequence struct {
	cache *RedisCache
}

func NewRedisSequence(cache *RedisCache) *RedisSequence {
	return &RedisSequence{cache: cache}
}

func (s *RedisSequence) Next(ctx context.Context, name string) (int64, error) {
	n, err := s.cache.Incr(ctx, "seq:"+name)
	if err != nil {
		return 0, fmt.Errorf("%w: sequence %s: %v", ErrStorage, name, err)
	}
	return n, nil
}

// DBSequence allocates from a row locked with SELECT ... FOR UPDATE
type DBSequence struct {
	db *gorm.DB
}

func NewDBSequence(db *gorm.DB) *DBSequence {
	return &DBSequence{db: db}
}

func (s *DBSequence) Next(ctx context.Context, name string) (int64, error) {
	var next int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Sequence{Name: name}).Error; err != nil {
			return err
		}

		var seq models.Sequence
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).First(&seq).Error; err != nil {
			return err
		}

		seq.Value++
		if err := tx.Model(&models.Sequence{}).Where("name = ?", name).Update("value", seq.Value).Error; err != nil {
			return err
		}
		next = seq.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: sequence %s: %v", ErrStorage, name, err)
	}
	return next, nil
}

// FormatPlotCode renders plot number n as P0001, P0002, ...
func FormatPlotCode(n int64) string {
	return fmt.Sprintf("P%04d", n)
}
