package store

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const documentsTable = "documents"

// documentsDDL is portable across SQLite and Postgres.
const documentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT   NOT NULL,
	id         TEXT   NOT NULL,
	data       TEXT   NOT NULL,
	created_by TEXT   NOT NULL,
	updated_by TEXT   NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (collection, id)
)`

const defaultListLimit = 100

// SQLRepository implements Repository on a single documents table, using
// ent's dialect-aware SQL builders.
type SQLRepository struct {
	drv *entsql.Driver
}

// NewSQLRepository wraps an ent SQL driver.
func NewSQLRepository(drv *entsql.Driver) *SQLRepository {
	return &SQLRepository{drv: drv}
}

// OpenSQL opens a database for the given driver: "sqlite" (modernc) or
// "postgres" (pgx).
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	switch driver {
	case "sqlite", "sqlite3", "":
		db, err := stdsql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
		return NewSQLRepository(entsql.OpenDB(dialect.SQLite, db)), nil
	case "postgres", "pgx":
		db, err := stdsql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting postgres: %w", err)
		}
		return NewSQLRepository(entsql.OpenDB(dialect.Postgres, db)), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// Migrate creates the documents table.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	return r.drv.Exec(ctx, documentsDDL, []any{}, nil)
}

// Close releases the database.
func (r *SQLRepository) Close() error {
	return r.drv.Close()
}

func (r *SQLRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *SQLRepository) Get(ctx context.Context, collection, id string) (Document, error) {
	return r.get(ctx, r.drv, collection, id)
}

func (r *SQLRepository) get(ctx context.Context, q dialect.ExecQuerier, collection, id string) (Document, error) {
	b := r.builder()
	query, args := b.Select("data").
		From(b.Table(documentsTable)).
		Where(entsql.And(entsql.EQ("collection", collection), entsql.EQ("id", id))).
		Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("querying %s/%s: %w", collection, id, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	var data string
	if err := rows.Scan(&data); err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

func (r *SQLRepository) List(ctx context.Context, collection string, page Page) ([]Document, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	b := r.builder()
	query, args := b.Select("data").
		From(b.Table(documentsTable)).
		Where(entsql.EQ("collection", collection)).
		OrderBy("created_at", "id").
		Limit(limit).
		Offset(page.Offset).
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()
	out := []Document{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		d, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLRepository) Create(ctx context.Context, collection string, doc Document, actor string) (Document, error) {
	d := doc.Clone()
	if d == nil {
		d = Document{}
	}
	if d.ID() == "" {
		d["id"] = uuid.New().String()
	}
	now := time.Now().UTC()
	d["createdBy"], d["updatedBy"] = actor, actor
	d["createdAt"], d["updatedAt"] = now.Format(time.RFC3339), now.Format(time.RFC3339)
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}

	query, args := r.builder().Insert(documentsTable).
		Columns("collection", "id", "data", "created_by", "updated_by", "created_at", "updated_at").
		Values(collection, d.ID(), string(data), actor, actor, now.UnixNano(), now.UnixNano()).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("%s/%s: %w", collection, d.ID(), ErrExists)
		}
		return nil, fmt.Errorf("inserting %s/%s: %w", collection, d.ID(), err)
	}
	return decodeDocument(string(data))
}

func (r *SQLRepository) Update(ctx context.Context, collection, id string, fields Document, actor string) (Document, error) {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	current, err := r.get(ctx, tx, collection, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	merged := mergeDocument(current, fields, actor)
	data, err := json.Marshal(merged)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	query, args := r.builder().Update(documentsTable).
		Set("data", string(data)).
		Set("updated_by", actor).
		Set("updated_at", time.Now().UTC().UnixNano()).
		Where(entsql.And(entsql.EQ("collection", collection), entsql.EQ("id", id))).
		Query()
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing %s/%s: %w", collection, id, err)
	}
	return decodeDocument(string(data))
}

func decodeDocument(data string) (Document, error) {
	var d Document
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return d, nil
}
