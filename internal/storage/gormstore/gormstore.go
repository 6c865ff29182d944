// Package gormstore keeps documents as JSON text rows through gorm, on SQLite
// or PostgreSQL.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"pkg.aura.care/moodfeed/internal/storage"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Record is one stored document.
type Record struct {
	Collection string `gorm:"primaryKey;size:255"`
	ID         string `gorm:"primaryKey;size:255"`
	Data       string `gorm:"type:text;notNull"`
}

func (Record) TableName() string {
	return "document_records"
}

type Store struct {
	logger *zap.Logger
	db     *gorm.DB
	// SQLite has no row locks; it serializes writers itself.
	lockRows bool
}

var _ storage.Store = (*Store)(nil)

// Open connects with the given dialect and migrates the records table.
// Verbose enables gorm's SQL logging.
func Open(l *zap.Logger, dialect, dsn string, verbose bool) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn required")
	}
	var dialector gorm.Dialector
	switch dialect {
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown gorm dialect %q", dialect)
	}

	logMode := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if verbose {
		logMode.Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(dialector, logMode)
	if err != nil {
		return nil, fmt.Errorf("err opening gorm %s connection: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// A single connection turns every transaction into a critical section
		// and keeps in-memory databases alive between calls.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("err migrating: %w", err)
	}
	return &Store{logger: l, db: db, lockRows: dialect != DialectSQLite}, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	return get(s.db.WithContext(ctx), collection, id)
}

func (s *Store) Put(ctx context.Context, collection, id string, doc storage.Document) error {
	return put(s.db.WithContext(ctx), collection, id, doc)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.db.WithContext(ctx).Delete(&Record{}, "collection = ? AND id = ?", collection, id).Error
}

func (s *Store) Query(ctx context.Context, q storage.Query) ([]storage.Snapshot, error) {
	var records []Record
	if err := s.db.WithContext(ctx).Where("collection = ?", q.Collection).Find(&records).Error; err != nil {
		return nil, err
	}
	snaps := make([]storage.Snapshot, 0, len(records))
	for _, r := range records {
		doc, err := storage.Decode([]byte(r.Data))
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, storage.Snapshot{ID: r.ID, Data: doc})
	}
	return storage.Apply(snaps, q), nil
}

func (s *Store) RunTransaction(ctx context.Context, fn storage.TxnFunc) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		tx := &txn{db: db, lockRows: s.lockRows, writes: storage.NewWriteSet()}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		for _, w := range tx.writes.Writes() {
			var err error
			switch {
			case w.Doc == nil:
				err = db.Delete(&Record{}, "collection = ? AND id = ?", w.Collection, w.ID).Error
			case w.Create:
				err = insert(db, w.Collection, w.ID, w.Doc)
			default:
				err = put(db, w.Collection, w.ID, w.Doc)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type txn struct {
	db       *gorm.DB
	lockRows bool
	writes   *storage.WriteSet
}

func (t *txn) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if doc, ok := t.writes.Lookup(collection, id); ok {
		if doc == nil {
			return nil, storage.ErrNotFound
		}
		return doc, nil
	}
	db := t.db.WithContext(ctx)
	if t.lockRows {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return get(db, collection, id)
}

func (t *txn) Put(collection, id string, doc storage.Document) {
	t.writes.Put(collection, id, doc)
}

func (t *txn) Create(collection, id string, doc storage.Document) {
	t.writes.Create(collection, id, doc)
}

func (t *txn) Delete(collection, id string) {
	t.writes.Delete(collection, id)
}

func get(db *gorm.DB, collection, id string) (storage.Document, error) {
	var r Record
	err := db.Where("collection = ? AND id = ?", collection, id).Take(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return storage.Decode([]byte(r.Data))
}

func put(db *gorm.DB, collection, id string, doc storage.Document) error {
	b, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(&Record{Collection: collection, ID: id, Data: string(b)}).Error
}

// insert adds a record that must not exist yet. The primary key decides
// between concurrent inserts, so the loser affects no rows.
func insert(db *gorm.DB, collection, id string, doc storage.Document) error {
	b, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Record{Collection: collection, ID: id, Data: string(b)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, storage.ErrAlreadyExists)
	}
	return nil
}
