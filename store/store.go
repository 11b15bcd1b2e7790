// Package store persists the build farm and archive state with xorm.
package store

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"xorm.io/xorm"

	"github.com/hashworks/buildfarm/model"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Queries runs every query of the store against either the engine or an open
// transaction.
type Queries struct {
	db xorm.Interface
}

type Store struct {
	*Queries
	DB *xorm.Engine
}

func Open(driver string, dsn string) (*Store, error) {
	engine, err := xorm.NewEngine(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if driver == "sqlite3" {
		// SQLite allows a single writer, transactions share the one connection.
		engine.SetMaxOpenConns(1)
	}
	return New(engine), nil
}

func New(engine *xorm.Engine) *Store {
	return &Store{
		Queries: &Queries{db: engine},
		DB:      engine,
	}
}

// Sync creates or migrates every table.
func (s *Store) Sync() error {
	err := s.DB.Sync2(
		new(model.Processor),
		new(model.DistroSeries),
		new(model.DistroArchSeries),
		new(model.Builder),
		new(model.Archive),
		new(model.SourcePackageRelease),
		new(model.SourcePackageReleaseFile),
		new(model.BinaryPackageRelease),
		new(model.Build),
		new(model.BuildQueueEntry),
		new(model.SourcePublication),
		new(model.BinaryPublication),
	)
	if err != nil {
		return fmt.Errorf("failed to sync structs to database tables: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Transaction runs fn inside a database transaction. The transaction is
// rolled back if fn returns an error or panics.
func (s *Store) Transaction(ctx context.Context, fn func(q *Queries) error) error {
	session := s.DB.NewSession().Context(ctx)
	defer session.Close()

	if err := session.Begin(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&Queries{db: session}); err != nil {
		if rollbackErr := session.Rollback(); rollbackErr != nil {
			return errors.Join(err, rollbackErr)
		}
		return err
	}
	if err := session.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (q *Queries) Insert(beans ...interface{}) error {
	_, err := q.db.Insert(beans...)
	return err
}

func (q *Queries) getByID(id int64, bean interface{}) error {
	found, err := q.db.ID(id).Get(bean)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}
