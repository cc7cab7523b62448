package queue

import (
	_ "embed"

	"racefeed/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

// queueSchema is bumped whenever schema.sql changes. An older queue database
// is refused rather than migrated: the queue only holds work that the
// discovery jobs re-enqueue, so deleting it loses nothing canonical.
var queueSchema = sqlitedb.Schema{
	Name:    "queue",
	DDL:     schemaSQL,
	Version: 1,
	Remedy:  "delete the queue database and let the discovery jobs re-enqueue",
}

// ErrSchemaMismatch indicates the queue database was created by a different release.
var ErrSchemaMismatch = sqlitedb.ErrSchemaMismatch
