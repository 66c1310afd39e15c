// Package store persists occluder maps in SQLite
package store

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/wire"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrMapNotFound is returned for map names the store does not hold
	ErrMapNotFound = errors.New("map not found")
	// ErrInvalidName is returned for empty map names
	ErrInvalidName = errors.New("invalid map name")
)

// MapModel is one saved map
type MapModel struct {
	Name      string `gorm:"primaryKey"`
	Occluders int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OccluderModel is one occluder of a saved map. Descriptor and transform are
// stored in wire format.
type OccluderModel struct {
	MapName    string `gorm:"primaryKey;index"`
	OccluderID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Kind       string
	Dynamic    bool
	Descriptor []byte
	Transform  []byte
}

// MapInfo summarizes a saved map
type MapInfo struct {
	Name      string    `json:"name"`
	Occluders int       `json:"occluders"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a SQLite map store
type Store struct {
	db     *gorm.DB
	logger core.Logger
}

// Open opens (or creates) the database at path and migrates the schema.
// A nil logger writes to the standard logger.
func Open(path string, l core.Logger) (*Store, error) {
	if l == nil {
		l = log.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open map store %s: %w", path, err)
	}

	if err := db.AutoMigrate(&MapModel{}, &OccluderModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate map store: %w", err)
	}

	l.Printf("[Store] opened %s", path)
	return &Store{db: db, logger: l}, nil
}

// Close closes the database
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveMap replaces the map called name with records in one transaction
func (s *Store) SaveMap(name string, records []registry.Record) error {
	if name == "" {
		return ErrInvalidName
	}

	models := make([]OccluderModel, len(records))
	for i, r := range records {
		models[i] = OccluderModel{
			MapName:    name,
			OccluderID: uint64(r.ID),
			Kind:       r.Descriptor.Kind.String(),
			Dynamic:    r.Dynamic,
			Descriptor: wire.MarshalDescriptor(r.Descriptor),
			Transform:  wire.MarshalTransform(r.Transform),
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("map_name = ?", name).Delete(&OccluderModel{}).Error; err != nil {
			return err
		}
		if err := tx.Save(&MapModel{Name: name, Occluders: len(models)}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.CreateInBatches(models, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save map %q: %w", name, err)
	}

	s.logger.Printf("[Store] saved map %q (%d occluders)", name, len(models))
	return nil
}

// LoadMap returns the records of the map called name, ordered by id
func (s *Store) LoadMap(name string) ([]registry.Record, error) {
	var m MapModel
	if err := s.db.First(&m, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrMapNotFound, name)
		}
		return nil, fmt.Errorf("failed to load map %q: %w", name, err)
	}

	var models []OccluderModel
	if err := s.db.Where("map_name = ?", name).Order("occluder_id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load occluders of %q: %w", name, err)
	}

	records := make([]registry.Record, 0, len(models))
	for _, model := range models {
		r, err := model.record()
		if err != nil {
			return nil, fmt.Errorf("map %q occluder %d: %w", name, model.OccluderID, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (m OccluderModel) record() (registry.Record, error) {
	desc, err := wire.UnmarshalDescriptor(m.Descriptor)
	if err != nil {
		return registry.Record{}, err
	}
	transform, err := wire.UnmarshalTransform(m.Transform)
	if err != nil {
		return registry.Record{}, err
	}
	if kind, err := geometry.ParseKind(m.Kind); err == nil && kind != desc.Kind {
		return registry.Record{}, fmt.Errorf("kind column %s disagrees with descriptor %s", m.Kind, desc.Kind)
	}
	return registry.Record{
		ID:         registry.ID(m.OccluderID),
		Descriptor: desc,
		Transform:  transform,
		Dynamic:    m.Dynamic,
	}, nil
}

// ListMaps returns every saved map, ordered by name
func (s *Store) ListMaps() ([]MapInfo, error) {
	var models []MapModel
	if err := s.db.Order("name").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list maps: %w", err)
	}
	maps := make([]MapInfo, len(models))
	for i, m := range models {
		maps[i] = MapInfo{Name: m.Name, Occluders: m.Occluders, UpdatedAt: m.UpdatedAt}
	}
	return maps, nil
}

// DeleteMap removes the map called name
func (s *Store) DeleteMap(name string) error {
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("map_name = ?", name).Delete(&OccluderModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("name = ?", name).Delete(&MapModel{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete map %q: %w", name, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %q", ErrMapNotFound, name)
	}
	s.logger.Printf("[Store] deleted map %q", name)
	return nil
}
