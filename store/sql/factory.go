package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// NewActivityStoreFrom accepts either a *bun.DB or anything exposing one,
// such as a go-persistence-bun client.
func NewActivityStoreFrom(persistenceClient any) (*ActivityStore, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	return NewActivityStore(db)
}

// EnsureSchema creates the ledger table when it does not exist yet. Local
// development databases start empty; there is no migration pipeline here.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return fmt.Errorf("sqlstore: bun db is required")
	}
	_, err := db.NewCreateTable().
		Model((*proxyActivityRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
