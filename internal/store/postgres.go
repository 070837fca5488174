package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobsync/internal/model"
)

// schema is applied statement by statement on startup; every statement is
// idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id          TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL UNIQUE,
		title       TEXT NOT NULL,
		company     TEXT NOT NULL,
		location    TEXT,
		experience  TEXT,
		salary      TEXT,
		description TEXT,
		skills      TEXT,
		source      TEXT NOT NULL,
		source_url  TEXT,
		apply_url   TEXT,
		posted_at   TIMESTAMPTZ NOT NULL,
		fetched_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_remote   BOOLEAN NOT NULL DEFAULT false,
		is_new      BOOLEAN NOT NULL DEFAULT true,
		applied_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs (source)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_listing ON jobs (is_new DESC, fetched_at DESC, id)`,
	`CREATE TABLE IF NOT EXISTS scrape_logs (
		id         BIGSERIAL PRIMARY KEY,
		source     TEXT NOT NULL,
		status     TEXT NOT NULL,
		jobs_found INTEGER NOT NULL DEFAULT 0,
		jobs_new   INTEGER NOT NULL DEFAULT 0,
		error      TEXT,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS app_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

const postingColumns = `id, fingerprint, title, company,
	COALESCE(location, ''), COALESCE(experience, ''), COALESCE(salary, ''),
	COALESCE(description, ''), COALESCE(skills, ''), source,
	COALESCE(source_url, ''), COALESCE(apply_url, ''),
	posted_at, fetched_at, is_remote, is_new, applied_at`

// Postgres is the pgx-backed Store. The unique fingerprint column is what
// makes concurrent inserts of the same posting safe.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already verified pool and bootstraps the schema.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, classify("bootstrap schema", err)
		}
	}
	return &Postgres{pool: pool}, nil
}

// classify wraps connection-class failures (SQLSTATE 08xxx, 57Pxx, or any
// non-server error such as a dial timeout) as ErrUnavailable. Other server
// errors keep their SQLSTATE in the message.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") {
			return unavailable(op, err)
		}
		return fmt.Errorf("%s: sqlstate %s: %w", op, pgErr.Code, err)
	}
	return unavailable(op, err)
}

func (s *Postgres) InsertIfAbsent(ctx context.Context, p *model.Posting) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, fingerprint, title, company, location, experience, salary,
		                   description, skills, source, source_url, apply_url,
		                   posted_at, fetched_at, is_remote, is_new, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, true, NULL)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		p.ID, p.Fingerprint, p.Title, p.Company, p.Location, p.Experience, p.Salary,
		p.Description, p.Skills, string(p.Source), p.SourceURL, p.ApplyURL,
		p.PostedAt, p.FetchedAt, p.IsRemote,
	)
	if err != nil {
		return false, classify("insert posting", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) ResetFreshness(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE jobs SET is_new = false WHERE is_new = true`)
	if err != nil {
		return 0, classify("reset freshness", err)
	}
	return tag.RowsAffected(), nil
}

// buildWhere renders f as a WHERE clause with positional arguments.
func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Source != "" {
		conds = append(conds, "source = "+next(string(f.Source)))
	}
	if f.IsRemote != nil {
		conds = append(conds, "is_remote = "+next(*f.IsRemote))
	}
	if f.NewOnly {
		conds = append(conds, "is_new = true")
	}
	if f.AppliedOnly {
		conds = append(conds, "applied_at IS NOT NULL")
	}
	if f.Search != "" {
		p := next("%" + escapeLike(f.Search) + "%")
		conds = append(conds, fmt.Sprintf(
			"(title ILIKE %[1]s OR company ILIKE %[1]s OR COALESCE(location, '') ILIKE %[1]s OR COALESCE(skills, '') ILIKE %[1]s)", p))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Postgres) Query(ctx context.Context, f Filter, page, pageSize int) ([]model.Posting, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify("count postings", err)
	}

	n := len(args)
	args = append(args, pageSize, Offset(page, pageSize))
	rows, err := s.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM jobs`+where+
			fmt.Sprintf(` ORDER BY is_new DESC, fetched_at DESC, id ASC LIMIT $%d OFFSET $%d`, n+1, n+2),
		args...,
	)
	if err != nil {
		return nil, 0, classify("query postings", err)
	}
	defer rows.Close()

	items := make([]model.Posting, 0, pageSize)
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, 0, classify("scan posting", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("query postings", err)
	}
	return items, total, nil
}

func scanPosting(row pgx.Row) (*model.Posting, error) {
	var (
		p   model.Posting
		src string
	)
	if err := row.Scan(
		&p.ID, &p.Fingerprint, &p.Title, &p.Company,
		&p.Location, &p.Experience, &p.Salary,
		&p.Description, &p.Skills, &src,
		&p.SourceURL, &p.ApplyURL,
		&p.PostedAt, &p.FetchedAt, &p.IsRemote, &p.IsNew, &p.AppliedAt,
	); err != nil {
		return nil, err
	}
	p.Source = model.Source(src)
	return &p, nil
}

func (s *Postgres) Stats(ctx context.Context) (model.Stats, error) {
	st := model.Stats{BySource: make(map[model.Source]int)}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_new),
		        COUNT(*) FILTER (WHERE applied_at IS NOT NULL),
		        COUNT(*) FILTER (WHERE is_remote)
		 FROM jobs`,
	).Scan(&st.Total, &st.NewCount, &st.AppliedCount, &st.RemoteCount)
	if err != nil {
		return st, classify("stats", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT source, COUNT(*) FROM jobs GROUP BY source`)
	if err != nil {
		return st, classify("stats by source", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			src string
			n   int
		)
		if err := rows.Scan(&src, &n); err != nil {
			return st, classify("stats by source", err)
		}
		st.BySource[model.Source(src)] = n
	}
	if err := rows.Err(); err != nil {
		return st, classify("stats by source", err)
	}
	return st, nil
}

func (s *Postgres) GetByID(ctx context.Context, id string) (*model.Posting, error) {
	p, err := scanPosting(s.pool.QueryRow(ctx, `SELECT `+postingColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("get posting", err)
	}
	return p, nil
}

func (s *Postgres) SetApplied(ctx context.Context, id string, at *time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE jobs SET applied_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return classify("set applied", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) GetState(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM app_state WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("get state", err)
	}
	return v, true, nil
}

func (s *Postgres) SetState(ctx context.Context, key, value string) error {
	return s.SetStates(ctx, map[string]string{key: value})
}

// SetStates upserts every key inside one transaction.
func (s *Postgres) SetStates(ctx context.Context, kv map[string]string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for k, v := range kv {
			b.Queue(
				`INSERT INTO app_state (key, value) VALUES ($1, $2)
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
				k, v,
			)
		}
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		return classify("set state", err)
	}
	return nil
}

func (s *Postgres) AppendLog(ctx context.Context, e model.ScrapeLogEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_logs (source, status, jobs_found, jobs_new, error, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.Source), e.Status, e.JobsFound, e.JobsNew, e.Error, e.ScrapedAt,
	)
	if err != nil {
		return classify("append log", err)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
