package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"crudgate.org/internal/store"
)

// Store persists records in PostgreSQL. Field values live in a jsonb column
// so any registered entity type shares one table; the schema is created by
// cmd/migrate (ops/migrations/sql).
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

var safeIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Open connects to PostgreSQL with pool defaults tuned for API traffic.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection pool. Used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ByID(ctx context.Context, entityType string, id int64) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, entity_type, fields, created, last_edited from records where entity_type=$1 and id=$2`,
		entityType, id,
	)
	return scanRecord(row)
}

func (s *Store) ByField(ctx context.Context, entityType, field string, value any) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, entity_type, fields, created, last_edited from records where entity_type=$1 and fields->>$2 = $3 limit 1`,
		entityType, field, fmt.Sprint(value),
	)
	return scanRecord(row)
}

func (s *Store) List(ctx context.Context, entityType string, q store.Query) ([]*store.Record, int, error) {
	where := `entity_type=$1`
	args := []any{entityType}
	for field, value := range q.Filters {
		if !safeIdent.MatchString(field) {
			continue
		}
		args = append(args, fmt.Sprint(value))
		where += fmt.Sprintf(` and fields->>'%s' = $%d`, field, len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from records where `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := `id`
	switch q.Sort {
	case "", "ID":
	case "Created":
		order = `created`
	case "LastEdited":
		order = `last_edited`
	default:
		if safeIdent.MatchString(q.Sort) {
			order = fmt.Sprintf(`fields->>'%s'`, q.Sort)
		}
	}
	dir := `asc`
	if q.SortDesc {
		dir = `desc`
	}

	query := fmt.Sprintf(
		`select id, entity_type, fields, created, last_edited from records where %s order by %s %s`,
		where, order, dir,
	)
	if q.Limit > 0 {
		query += fmt.Sprintf(` limit %d`, q.Limit)
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(` offset %d`, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*store.Record
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (s *Store) Insert(ctx context.Context, rec *store.Record) error {
	fields, err := json.Marshal(rec.Values)
	if err != nil {
		return err
	}
	row := s.db.QueryRowContext(ctx,
		`insert into records(entity_type, fields, created, last_edited) values($1, $2, now(), now()) returning id, created, last_edited`,
		rec.Type, fields,
	)
	return row.Scan(&rec.ID, &rec.Created, &rec.LastEdited)
}

func (s *Store) Update(ctx context.Context, rec *store.Record) error {
	fields, err := json.Marshal(rec.Values)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`update records set fields=$1, last_edited=now() where entity_type=$2 and id=$3`,
		fields, rec.Type, rec.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, entityType string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`delete from records where entity_type=$1 and id=$2`, entityType, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (*store.Record, error) {
	rec, err := scanRecordRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanRecordRows(row rowScanner) (*store.Record, error) {
	var (
		rec    store.Record
		fields []byte
	)
	if err := row.Scan(&rec.ID, &rec.Type, &fields, &rec.Created, &rec.LastEdited); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &rec.Values); err != nil {
		return nil, err
	}
	if rec.Values == nil {
		rec.Values = make(map[string]any)
	}
	return &rec, nil
}
