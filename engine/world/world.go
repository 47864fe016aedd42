// Package world persists the placements a world simulator streams to viewers.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/go-gl/mathgl/mgl32"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNoModels is returned by Seed when no model names are given.
var ErrNoModels = errors.New("world: seed requires at least one model")

const seedBatchSize = 500

// Placement is one model instance in the world.
type Placement struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement:false"`
	Model     string  `gorm:"index;not null"`
	X         float32 `gorm:"index:idx_ground"`
	Y         float32
	Z         float32 `gorm:"index:idx_ground"`
	Yaw       float32
	Scale     float32
	CreatedAt time.Time
}

// Position returns the placement's world position.
func (p Placement) Position() mgl32.Vec3 { return mgl32.Vec3{p.X, p.Y, p.Z} }

// Rotation returns the placement's Euler rotation.
func (p Placement) Rotation() mgl32.Vec3 { return mgl32.Vec3{0, p.Yaw, 0} }

// ScaleVec returns the uniform scale as a vector.
func (p Placement) ScaleVec() mgl32.Vec3 { return mgl32.Vec3{p.Scale, p.Scale, p.Scale} }

// SeedConfig describes a randomly generated world.
type SeedConfig struct {
	// Count is the number of placements to add.
	Count int
	// Models are drawn uniformly for each placement.
	Models []string
	// Extent is the half-size of the square the placements land in, centred on the origin.
	Extent float32
	// Seed makes generation reproducible.
	Seed uint64
}

// Store is a SQLite-backed placement table.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open opens or creates the store at path and migrates its schema.
//
// Parameters:
//   - path: the SQLite file; parent directories are created
//
// Returns:
//   - *Store: the open store
//   - error: error if the database cannot be opened or migrated
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("world: create %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("world: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Placement{}); err != nil {
		return nil, fmt.Errorf("world: migrate: %w", err)
	}

	s := &Store{db: db, log: common.ComponentLogger("world").With("path", path)}
	s.log.Info("placement store opened")
	return s, nil
}

// Seed appends cfg.Count random placements after the current highest id.
//
// Parameters:
//   - ctx: cancels the insert
//   - cfg: what to generate
//
// Returns:
//   - []Placement: the inserted placements
//   - error: ErrNoModels, or the database error
func (s *Store) Seed(ctx context.Context, cfg SeedConfig) ([]Placement, error) {
	if len(cfg.Models) == 0 {
		return nil, ErrNoModels
	}
	if cfg.Count <= 0 {
		return nil, nil
	}

	var next uint64
	if err := s.db.WithContext(ctx).Model(&Placement{}).Select("COALESCE(MAX(id), 0)").Scan(&next).Error; err != nil {
		return nil, fmt.Errorf("world: highest id: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	placements := make([]Placement, cfg.Count)
	for i := range placements {
		next++
		placements[i] = Placement{
			ID:    next,
			Model: cfg.Models[rng.IntN(len(cfg.Models))],
			X:     (rng.Float32()*2 - 1) * cfg.Extent,
			Z:     (rng.Float32()*2 - 1) * cfg.Extent,
			Yaw:   rng.Float32() * 2 * float32(math.Pi),
			Scale: 0.5 + rng.Float32()*1.5,
		}
	}

	if err := s.db.WithContext(ctx).CreateInBatches(placements, seedBatchSize).Error; err != nil {
		return nil, fmt.Errorf("world: seed: %w", err)
	}
	s.log.Info("world seeded", "count", cfg.Count, "models", len(cfg.Models))
	return placements, nil
}

// Put inserts or replaces a placement.
func (s *Store) Put(ctx context.Context, p Placement) error {
	if err := s.db.WithContext(ctx).Save(&p).Error; err != nil {
		return fmt.Errorf("world: put %d: %w", p.ID, err)
	}
	return nil
}

// Delete removes a placement. Missing ids are not an error.
func (s *Store) Delete(ctx context.Context, id uint64) error {
	if err := s.db.WithContext(ctx).Delete(&Placement{}, id).Error; err != nil {
		return fmt.Errorf("world: delete %d: %w", id, err)
	}
	return nil
}

// Within returns the placements whose ground position (XZ) lies within
// radius of center, ordered by id.
//
// Parameters:
//   - ctx: cancels the query
//   - center: the query centre; Y is ignored
//   - radius: the query radius
//
// Returns:
//   - []Placement: the matching placements
//   - error: the database error
func (s *Store) Within(ctx context.Context, center mgl32.Vec3, radius float32) ([]Placement, error) {
	var box []Placement
	err := s.db.WithContext(ctx).
		Where("x BETWEEN ? AND ?", center.X()-radius, center.X()+radius).
		Where("z BETWEEN ? AND ?", center.Z()-radius, center.Z()+radius).
		Order("id").
		Find(&box).Error
	if err != nil {
		return nil, fmt.Errorf("world: query within %.1f: %w", radius, err)
	}

	out := box[:0]
	r2 := radius * radius
	for _, p := range box {
		dx, dz := p.X-center.X(), p.Z-center.Z()
		if dx*dx+dz*dz <= r2 {
			out = append(out, p)
		}
	}
	return out, nil
}

// Count returns the number of stored placements.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Placement{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("world: count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
