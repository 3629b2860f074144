package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

// MatterRepository stores one row per matter plus its source payloads.
// Put and Get each run in a single transaction so readers see either the
// old record or the new one.
type MatterRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewMatterRepository returns a repository whose records expire ttl after
// their last write. A zero ttl keeps records until replaced.
func NewMatterRepository(db *sql.DB, ttl time.Duration) *MatterRepository {
	return &MatterRepository{db: db, ttl: ttl, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *MatterRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS matters (
	client_id TEXT NOT NULL,
	matter_id TEXT NOT NULL,
	forum TEXT NOT NULL,
	compilation_profile_id TEXT NOT NULL,
	record JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	PRIMARY KEY (client_id, matter_id)
);

CREATE TABLE IF NOT EXISTS matter_files (
	client_id TEXT NOT NULL,
	matter_id TEXT NOT NULL,
	file_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	payload BYTEA NOT NULL,
	PRIMARY KEY (client_id, matter_id, file_id),
	FOREIGN KEY (client_id, matter_id) REFERENCES matters(client_id, matter_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_matters_expires_at ON matters(expires_at) WHERE expires_at IS NOT NULL;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *MatterRepository) Put(ctx context.Context, matter *domain.Matter) error {
	if matter == nil {
		return domain.Validationf("put matter", "matter is nil")
	}
	key := domain.MatterKey{ClientID: matter.ClientID, MatterID: matter.MatterID}
	if err := key.Validate(); err != nil {
		return err
	}

	record := *matter
	record.SourceFiles = nil
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal matter record: %w", err)
	}
	expiresAt := sql.NullTime{}
	if r.ttl > 0 {
		expiresAt = sql.NullTime{Time: r.now().UTC().Add(r.ttl), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "put matter", fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO matters (
	client_id, matter_id, forum, compilation_profile_id, record, created_at, updated_at, expires_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (client_id, matter_id) DO UPDATE SET
	forum = EXCLUDED.forum,
	compilation_profile_id = EXCLUDED.compilation_profile_id,
	record = EXCLUDED.record,
	created_at = EXCLUDED.created_at,
	updated_at = EXCLUDED.updated_at,
	expires_at = EXCLUDED.expires_at
`,
		matter.ClientID, matter.MatterID, matter.Forum, matter.CompilationProfileID, recordJSON,
		matter.CreatedAt.UTC(), matter.UpdatedAt.UTC(), expiresAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "put matter", fmt.Errorf("upsert matter: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM matter_files WHERE client_id = $1 AND matter_id = $2`,
		matter.ClientID, matter.MatterID); err != nil {
		return domain.WrapError(domain.ErrTemporary, "put matter", fmt.Errorf("clear source files: %w", err))
	}
	for i, f := range matter.SourceFiles {
		_, err := tx.ExecContext(ctx, `
INSERT INTO matter_files (client_id, matter_id, file_id, position, filename, content_type, payload)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, matter.ClientID, matter.MatterID, f.FileID, i, f.Filename, f.ContentType, f.Payload)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "put matter", fmt.Errorf("insert source file %s: %w", f.FileID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "put matter", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (r *MatterRepository) Get(ctx context.Context, key domain.MatterKey) (*domain.Matter, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "get matter", fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var recordRaw []byte
	err = tx.QueryRowContext(ctx, `
SELECT record
FROM matters
WHERE client_id = $1 AND matter_id = $2 AND (expires_at IS NULL OR expires_at > $3)
`, key.ClientID, key.MatterID, r.now().UTC()).Scan(&recordRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrMatterNotFound, "get matter", fmt.Errorf("key=%s", key))
		}
		return nil, domain.WrapError(domain.ErrTemporary, "get matter", fmt.Errorf("scan matter: %w", err))
	}

	var matter domain.Matter
	if err := json.Unmarshal(recordRaw, &matter); err != nil {
		return nil, fmt.Errorf("unmarshal matter record: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
SELECT file_id, filename, content_type, payload
FROM matter_files
WHERE client_id = $1 AND matter_id = $2
ORDER BY position ASC
`, key.ClientID, key.MatterID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "get matter", fmt.Errorf("query source files: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.SourceFile
		if err := rows.Scan(&f.FileID, &f.Filename, &f.ContentType, &f.Payload); err != nil {
			return nil, fmt.Errorf("scan source file: %w", err)
		}
		matter.SourceFiles = append(matter.SourceFiles, f)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "get matter", fmt.Errorf("iterate source files: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "get matter", fmt.Errorf("commit: %w", err))
	}
	return &matter, nil
}

// PurgeExpired deletes expired matters; their files go with them.
func (r *MatterRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM matters WHERE expires_at IS NOT NULL AND expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired matters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return n, nil
}
