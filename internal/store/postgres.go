package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tenkay/filing-pipeline/internal/db"
	"github.com/tenkay/filing-pipeline/internal/model"
)

// PostgresStore implements Store using pgxpool. The pool is goroutine-safe
// and shared by every worker.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	ticker     TEXT NOT NULL UNIQUE,
	cik        TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	sector     TEXT NOT NULL DEFAULT '',
	enabled    BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS filings (
	id               TEXT PRIMARY KEY,
	company_id       TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	filing_type      TEXT NOT NULL,
	filing_date      DATE NOT NULL,
	fiscal_year      INTEGER NOT NULL,
	fiscal_period    TEXT NOT NULL,
	accession_number TEXT NOT NULL UNIQUE,
	document_url     TEXT NOT NULL DEFAULT '',
	raw_document_url TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'pending',
	error_message    TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS content (
	id              TEXT PRIMARY KEY,
	filing_id       TEXT NOT NULL UNIQUE REFERENCES filings(id) ON DELETE CASCADE,
	analysis_type   TEXT NOT NULL,
	analysis        JSONB NOT NULL,
	blog_html       TEXT,
	email_html      TEXT,
	email_text      TEXT,
	word_count      INTEGER NOT NULL DEFAULT 0,
	reading_minutes INTEGER NOT NULL DEFAULT 0,
	published_at    TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS subscribers (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	tier       TEXT NOT NULL DEFAULT 'free',
	enabled    BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS deliveries (
	id            TEXT PRIMARY KEY,
	content_id    TEXT NOT NULL REFERENCES content(id) ON DELETE CASCADE,
	channel       TEXT NOT NULL,
	status        TEXT NOT NULL,
	recipients    INTEGER NOT NULL DEFAULT 0,
	sent_count    INTEGER NOT NULL DEFAULT 0,
	failed_count  INTEGER NOT NULL DEFAULT 0,
	provider_ids  JSONB NOT NULL DEFAULT '[]',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (content_id, channel)
);

CREATE INDEX IF NOT EXISTS idx_filings_status ON filings(status);
CREATE INDEX IF NOT EXISTS idx_filings_filing_date ON filings(filing_date DESC);
CREATE INDEX IF NOT EXISTS idx_content_created_at ON content(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);
CREATE INDEX IF NOT EXISTS idx_subscribers_tier ON subscribers(tier) WHERE enabled;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- companies ---

func (s *PostgresStore) UpsertCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (id, ticker, cik, name, sector, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (ticker) DO UPDATE SET
			cik = CASE WHEN EXCLUDED.cik <> '' THEN EXCLUDED.cik ELSE companies.cik END,
			name = EXCLUDED.name, sector = EXCLUDED.sector, enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		c.ID, c.Ticker, c.CIK, c.Name, c.Sector, c.Enabled, now,
	).Scan(&c.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert company %s", c.Ticker)
	}
	c.UpdatedAt = now
	return nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context, enabledOnly bool) ([]model.Company, error) {
	query := `SELECT id, ticker, cik, name, sector, enabled, created_at, updated_at FROM companies`
	if enabledOnly {
		query += ` WHERE enabled`
	}
	query += ` ORDER BY ticker`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Ticker, &c.CIK, &c.Name, &c.Sector, &c.Enabled, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

// --- filings ---

func (s *PostgresStore) FilingExists(ctx context.Context, accession string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM filings WHERE accession_number = $1)`, accession,
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: filing exists")
}

func (s *PostgresStore) CreateFiling(ctx context.Context, f *model.Filing) (bool, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Status == "" {
		f.Status = model.FilingPending
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO filings (id, company_id, filing_type, filing_date, fiscal_year, fiscal_period,
			accession_number, document_url, raw_document_url, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (accession_number) DO NOTHING`,
		f.ID, f.CompanyID, string(f.FilingType), f.FilingDate, f.FiscalYear, string(f.FiscalPeriod),
		f.AccessionNumber, f.DocumentURL, f.RawDocumentURL, string(f.Status), f.ErrorMessage, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: create filing %s", f.AccessionNumber)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetFiling(ctx context.Context, id string) (*model.Filing, error) {
	return s.getFilingWhere(ctx, sq.Eq{"f.id": id})
}

func (s *PostgresStore) GetFilingByAccession(ctx context.Context, accession string) (*model.Filing, error) {
	return s.getFilingWhere(ctx, sq.Eq{"f.accession_number": accession})
}

func (s *PostgresStore) getFilingWhere(ctx context.Context, pred sq.Eq) (*model.Filing, error) {
	query, args, err := selectFilings(pgSQL).Where(pred).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get filing")
	}
	f, err := scanFiling(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "postgres: get filing")
	}
	return f, eris.Wrap(err, "postgres: get filing")
}

func (s *PostgresStore) ListFilings(ctx context.Context, filter FilingFilter) ([]model.Filing, error) {
	query, args, err := listFilingsQuery(pgSQL, filter)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list filings")
	}
	return s.queryFilings(ctx, query, args)
}

func (s *PostgresStore) ListAnalyzeCandidates(ctx context.Context, limit int) ([]model.Filing, error) {
	query, args, err := analyzeCandidatesQuery(pgSQL, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build analyze candidates")
	}
	return s.queryFilings(ctx, query, args)
}

func (s *PostgresStore) queryFilings(ctx context.Context, query string, args []any) ([]model.Filing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query filings")
	}
	defer rows.Close()

	var out []model.Filing
	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan filing")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate filings")
}

func (s *PostgresStore) AdvanceFiling(ctx context.Context, id string, to model.FilingStatus, errMsg string) error {
	return advanceFilingPG(ctx, s.pool, id, to, errMsg)
}

// pgQuerier is satisfied by both the pool and a transaction.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func advanceFilingPG(ctx context.Context, q pgQuerier, id string, to model.FilingStatus, errMsg string) error {
	query, args, err := advanceFilingQuery(pgSQL, id, to, errMsg, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "postgres: build advance filing")
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: advance filing %s", id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = q.QueryRow(ctx, `SELECT status FROM filings WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "postgres: advance filing %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: advance filing %s", id)
	}
	return eris.Wrapf(ErrInvalidTransition, "filing %s: %s -> %s", id, current, to)
}

func (s *PostgresStore) DeleteFiling(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM filings WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete filing %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete filing %s", id)
	}
	return nil
}

// --- content ---

func (s *PostgresStore) ContentExists(ctx context.Context, filingID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM content WHERE filing_id = $1)`, filingID,
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: content exists")
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, c *model.Content) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	analysisJSON, err := json.Marshal(c.Analysis)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal analysis")
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	created := false
	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO content (id, filing_id, analysis_type, analysis, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (filing_id) DO NOTHING`,
			c.ID, c.FilingID, string(c.AnalysisType), analysisJSON, now,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert content")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		created = true
		return advanceFilingPG(ctx, tx, c.FilingID, model.FilingAnalyzed, "")
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *PostgresStore) GetContent(ctx context.Context, id string) (*model.ContentView, error) {
	query, args, err := contentViewQuery(pgSQL, id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get content")
	}
	v, err := scanContentView(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get content %s", id)
	}
	return v, eris.Wrap(err, "postgres: get content")
}

func (s *PostgresStore) ListGenerateCandidates(ctx context.Context, limit int) ([]model.Content, error) {
	query, args, err := generateCandidatesQuery(pgSQL, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build generate candidates")
	}
	return s.queryContent(ctx, query, args)
}

func (s *PostgresStore) ListPublishCandidates(ctx context.Context, channel model.Channel, limit int) ([]model.Content, error) {
	query, args, err := publishCandidatesQuery(pgSQL, channel, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build publish candidates")
	}
	return s.queryContent(ctx, query, args)
}

func (s *PostgresStore) queryContent(ctx context.Context, query string, args []any) ([]model.Content, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query content")
	}
	defer rows.Close()

	var out []model.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan content")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate content")
}

func (s *PostgresStore) SaveRendered(ctx context.Context, contentID string, r model.Rendered) error {
	now := time.Now().UTC()
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var filingID string
		err := tx.QueryRow(ctx,
			`UPDATE content SET blog_html = $1, email_html = $2, email_text = $3,
				word_count = $4, reading_minutes = $5, updated_at = $6
			WHERE id = $7 RETURNING filing_id`,
			r.BlogHTML, r.EmailHTML, r.EmailText, r.WordCount, r.ReadingMinutes, now, contentID,
		).Scan(&filingID)
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "postgres: save rendered %s", contentID)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: save rendered %s", contentID)
		}
		return advanceFilingPG(ctx, tx, filingID, model.FilingGenerated, "")
	})
}

// --- subscribers ---

func (s *PostgresStore) UpsertSubscriber(ctx context.Context, sub *model.Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO subscribers (id, email, first_name, tier, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name, tier = EXCLUDED.tier, enabled = EXCLUDED.enabled
		RETURNING id`,
		sub.ID, sub.Email, sub.FirstName, string(sub.Tier), sub.Enabled, sub.CreatedAt,
	).Scan(&sub.ID)
	return eris.Wrapf(err, "postgres: upsert subscriber %s", sub.Email)
}

func (s *PostgresStore) ListSubscribers(ctx context.Context, tier model.Tier) ([]model.Subscriber, error) {
	q := pgSQL.Select("id", "email", "first_name", "tier", "enabled", "created_at").
		From("subscribers").
		Where(sq.Eq{"enabled": true}).
		OrderBy("created_at")
	if tier != "" && tier != model.TierAll {
		q = q.Where(sq.Eq{"tier": string(tier)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list subscribers")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subscribers")
	}
	defer rows.Close()

	var out []model.Subscriber
	for rows.Next() {
		var sub model.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.FirstName, &sub.Tier, &sub.Enabled, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subscriber")
		}
		out = append(out, sub)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate subscribers")
}

// --- deliveries ---

func (s *PostgresStore) DeliveryExists(ctx context.Context, contentID string, channel model.Channel) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM deliveries WHERE content_id = $1 AND channel = $2 AND status = $3)`,
		contentID, string(channel), string(model.DeliverySent),
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: delivery exists")
}

func (s *PostgresStore) ClaimDelivery(ctx context.Context, d *model.Delivery) (bool, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO deliveries (id, content_id, channel, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (content_id, channel) DO UPDATE SET
			status = EXCLUDED.status, error_message = '', updated_at = EXCLUDED.updated_at
		WHERE deliveries.status = $6
		RETURNING id`,
		d.ID, d.ContentID, string(d.Channel), string(model.DeliverySending), now, string(model.DeliveryFailed),
	).Scan(&d.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: claim delivery %s", d.ContentID)
	}
	d.Status = model.DeliverySending
	d.CreatedAt, d.UpdatedAt = now, now
	return true, nil
}

func (s *PostgresStore) CompleteDelivery(ctx context.Context, d *model.Delivery) error {
	ids, err := marshalProviderIDs(d.ProviderIDs)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE deliveries SET status = $1, recipients = $2, sent_count = $3, failed_count = $4,
				provider_ids = $5, error_message = $6, updated_at = $7
			WHERE id = $8 AND status = $9`,
			string(d.Status), d.Recipients, d.SentCount, d.FailedCount, ids, d.ErrorMessage, now,
			d.ID, string(model.DeliverySending),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: complete delivery %s", d.ID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "postgres: no claimed delivery %s", d.ID)
		}
		if d.Status != model.DeliverySent {
			return nil
		}

		var filingID string
		err = tx.QueryRow(ctx,
			`UPDATE content SET published_at = $1, updated_at = $1 WHERE id = $2 RETURNING filing_id`,
			now, d.ContentID,
		).Scan(&filingID)
		if err != nil {
			return eris.Wrapf(err, "postgres: mark content %s published", d.ContentID)
		}
		return advanceFilingPG(ctx, tx, filingID, model.FilingPublished, "")
	})
}

// --- progress ---

func (s *PostgresStore) AnalyzeProgress(ctx context.Context) (model.Progress, error) {
	return s.progress(ctx, analyzeProgressSQL, "analyze")
}

func (s *PostgresStore) GenerateProgress(ctx context.Context) (model.Progress, error) {
	return s.progress(ctx, generateProgressSQL, "generate")
}

func (s *PostgresStore) PublishProgress(ctx context.Context) (model.Progress, error) {
	return s.progress(ctx, publishProgressSQL, "publish")
}

func (s *PostgresStore) progress(ctx context.Context, query, name string) (model.Progress, error) {
	var p model.Progress
	err := s.pool.QueryRow(ctx, query).Scan(&p.Total, &p.Done)
	return p, eris.Wrapf(err, "postgres: %s progress", name)
}

func (s *PostgresStore) CountFilingsByStatus(ctx context.Context) (map[model.FilingStatus]int, error) {
	rows, err := s.pool.Query(ctx, countByStatusSQL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count filings")
	}
	defer rows.Close()

	out := make(map[model.FilingStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan filing count")
		}
		out[model.FilingStatus(status)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate filing counts")
}
