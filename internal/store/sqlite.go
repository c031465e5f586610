package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tenkay/filing-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// runs and integration tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection: SQLite has a single writer and pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL UNIQUE,
	cik        TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	sector     TEXT NOT NULL DEFAULT '',
	enabled    INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS filings (
	id               TEXT PRIMARY KEY,
	company_id       TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	filing_type      TEXT NOT NULL,
	filing_date      DATETIME NOT NULL,
	fiscal_year      INTEGER NOT NULL,
	fiscal_period    TEXT NOT NULL,
	accession_number TEXT NOT NULL UNIQUE,
	document_url     TEXT NOT NULL DEFAULT '',
	raw_document_url TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'pending',
	error_message    TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS content (
	id              TEXT PRIMARY KEY,
	filing_id       TEXT NOT NULL UNIQUE REFERENCES filings(id) ON DELETE CASCADE,
	analysis_type   TEXT NOT NULL,
	analysis        TEXT NOT NULL,
	blog_html       TEXT,
	email_html      TEXT,
	email_text      TEXT,
	word_count      INTEGER NOT NULL DEFAULT 0,
	reading_minutes INTEGER NOT NULL DEFAULT 0,
	published_at    DATETIME,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS subscribers (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	tier       TEXT NOT NULL DEFAULT 'free',
	enabled    INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS deliveries (
	id            TEXT PRIMARY KEY,
	content_id    TEXT NOT NULL REFERENCES content(id) ON DELETE CASCADE,
	channel       TEXT NOT NULL,
	status        TEXT NOT NULL,
	recipients    INTEGER NOT NULL DEFAULT 0,
	sent_count    INTEGER NOT NULL DEFAULT 0,
	failed_count  INTEGER NOT NULL DEFAULT 0,
	provider_ids  TEXT NOT NULL DEFAULT '[]',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	UNIQUE (content_id, channel)
);

CREATE INDEX IF NOT EXISTS idx_filings_status ON filings(status);
CREATE INDEX IF NOT EXISTS idx_filings_filing_date ON filings(filing_date);
CREATE INDEX IF NOT EXISTS idx_content_created_at ON content(created_at);
CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction, committing on success.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- companies ---

func (s *SQLiteStore) UpsertCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO companies (id, ticker, cik, name, sector, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET
			cik = CASE WHEN excluded.cik <> '' THEN excluded.cik ELSE companies.cik END,
			name = excluded.name, sector = excluded.sector, enabled = excluded.enabled,
			updated_at = excluded.updated_at
		RETURNING id`,
		c.ID, c.Ticker, c.CIK, c.Name, c.Sector, c.Enabled, now, now,
	).Scan(&c.ID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert company %s", c.Ticker)
	}
	c.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, enabledOnly bool) ([]model.Company, error) {
	query := `SELECT id, ticker, cik, name, sector, enabled, created_at, updated_at FROM companies`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY ticker`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Ticker, &c.CIK, &c.Name, &c.Sector, &c.Enabled, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

// --- filings ---

func (s *SQLiteStore) FilingExists(ctx context.Context, accession string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM filings WHERE accession_number = ?)`, accession,
	).Scan(&exists)
	return exists, eris.Wrap(err, "sqlite: filing exists")
}

func (s *SQLiteStore) CreateFiling(ctx context.Context, f *model.Filing) (bool, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Status == "" {
		f.Status = model.FilingPending
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO filings (id, company_id, filing_type, filing_date, fiscal_year, fiscal_period,
			accession_number, document_url, raw_document_url, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (accession_number) DO NOTHING`,
		f.ID, f.CompanyID, string(f.FilingType), f.FilingDate.UTC(), f.FiscalYear, string(f.FiscalPeriod),
		f.AccessionNumber, f.DocumentURL, f.RawDocumentURL, string(f.Status), f.ErrorMessage, now, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: create filing %s", f.AccessionNumber)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) GetFiling(ctx context.Context, id string) (*model.Filing, error) {
	return s.getFilingWhere(ctx, sq.Eq{"f.id": id})
}

func (s *SQLiteStore) GetFilingByAccession(ctx context.Context, accession string) (*model.Filing, error) {
	return s.getFilingWhere(ctx, sq.Eq{"f.accession_number": accession})
}

func (s *SQLiteStore) getFilingWhere(ctx context.Context, pred sq.Eq) (*model.Filing, error) {
	query, args, err := selectFilings(liteSQL).Where(pred).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get filing")
	}
	f, err := scanFiling(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "sqlite: get filing")
	}
	return f, eris.Wrap(err, "sqlite: get filing")
}

func (s *SQLiteStore) ListFilings(ctx context.Context, filter FilingFilter) ([]model.Filing, error) {
	query, args, err := listFilingsQuery(liteSQL, filter)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list filings")
	}
	return s.queryFilings(ctx, query, args)
}

func (s *SQLiteStore) ListAnalyzeCandidates(ctx context.Context, limit int) ([]model.Filing, error) {
	query, args, err := analyzeCandidatesQuery(liteSQL, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build analyze candidates")
	}
	return s.queryFilings(ctx, query, args)
}

func (s *SQLiteStore) queryFilings(ctx context.Context, query string, args []any) ([]model.Filing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query filings")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Filing
	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan filing")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate filings")
}

func (s *SQLiteStore) AdvanceFiling(ctx context.Context, id string, to model.FilingStatus, errMsg string) error {
	return advanceFilingLite(ctx, s.db, id, to, errMsg)
}

func advanceFilingLite(ctx context.Context, q sqlQuerier, id string, to model.FilingStatus, errMsg string) error {
	query, args, err := advanceFilingQuery(liteSQL, id, to, errMsg, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "sqlite: build advance filing")
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: advance filing %s", id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = q.QueryRowContext(ctx, `SELECT status FROM filings WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: advance filing %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: advance filing %s", id)
	}
	return eris.Wrapf(ErrInvalidTransition, "filing %s: %s -> %s", id, current, to)
}

func (s *SQLiteStore) DeleteFiling(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM deliveries WHERE content_id IN (SELECT id FROM content WHERE filing_id = ?)`, id); err != nil {
			return eris.Wrap(err, "sqlite: delete deliveries")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM content WHERE filing_id = ?`, id); err != nil {
			return eris.Wrap(err, "sqlite: delete content")
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM filings WHERE id = ?`, id)
		if err != nil {
			return eris.Wrapf(err, "sqlite: delete filing %s", id)
		}
		return checkRowsAffected(res, "filing", id)
	})
}

// --- content ---

func (s *SQLiteStore) ContentExists(ctx context.Context, filingID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM content WHERE filing_id = ?)`, filingID,
	).Scan(&exists)
	return exists, eris.Wrap(err, "sqlite: content exists")
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, c *model.Content) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	analysisJSON, err := json.Marshal(c.Analysis)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal analysis")
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	created := false
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO content (id, filing_id, analysis_type, analysis, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (filing_id) DO NOTHING`,
			c.ID, c.FilingID, string(c.AnalysisType), string(analysisJSON), now, now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert content")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		created = true
		return advanceFilingLite(ctx, tx, c.FilingID, model.FilingAnalyzed, "")
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *SQLiteStore) GetContent(ctx context.Context, id string) (*model.ContentView, error) {
	query, args, err := contentViewQuery(liteSQL, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get content")
	}
	v, err := scanContentView(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get content %s", id)
	}
	return v, eris.Wrap(err, "sqlite: get content")
}

func (s *SQLiteStore) ListGenerateCandidates(ctx context.Context, limit int) ([]model.Content, error) {
	query, args, err := generateCandidatesQuery(liteSQL, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build generate candidates")
	}
	return s.queryContent(ctx, query, args)
}

func (s *SQLiteStore) ListPublishCandidates(ctx context.Context, channel model.Channel, limit int) ([]model.Content, error) {
	query, args, err := publishCandidatesQuery(liteSQL, channel, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build publish candidates")
	}
	return s.queryContent(ctx, query, args)
}

func (s *SQLiteStore) queryContent(ctx context.Context, query string, args []any) ([]model.Content, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query content")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan content")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate content")
}

func (s *SQLiteStore) SaveRendered(ctx context.Context, contentID string, r model.Rendered) error {
	now := time.Now().UTC()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var filingID string
		err := tx.QueryRowContext(ctx,
			`UPDATE content SET blog_html = ?, email_html = ?, email_text = ?,
				word_count = ?, reading_minutes = ?, updated_at = ?
			WHERE id = ? RETURNING filing_id`,
			r.BlogHTML, r.EmailHTML, r.EmailText, r.WordCount, r.ReadingMinutes, now, contentID,
		).Scan(&filingID)
		if errors.Is(err, sql.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "sqlite: save rendered %s", contentID)
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: save rendered %s", contentID)
		}
		return advanceFilingLite(ctx, tx, filingID, model.FilingGenerated, "")
	})
}

// --- subscribers ---

func (s *SQLiteStore) UpsertSubscriber(ctx context.Context, sub *model.Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO subscribers (id, email, first_name, tier, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			first_name = excluded.first_name, tier = excluded.tier, enabled = excluded.enabled
		RETURNING id`,
		sub.ID, sub.Email, sub.FirstName, string(sub.Tier), sub.Enabled, sub.CreatedAt,
	).Scan(&sub.ID)
	return eris.Wrapf(err, "sqlite: upsert subscriber %s", sub.Email)
}

func (s *SQLiteStore) ListSubscribers(ctx context.Context, tier model.Tier) ([]model.Subscriber, error) {
	q := liteSQL.Select("id", "email", "first_name", "tier", "enabled", "created_at").
		From("subscribers").
		Where(sq.Eq{"enabled": true}).
		OrderBy("created_at")
	if tier != "" && tier != model.TierAll {
		q = q.Where(sq.Eq{"tier": string(tier)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list subscribers")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subscribers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Subscriber
	for rows.Next() {
		var sub model.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.FirstName, &sub.Tier, &sub.Enabled, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subscriber")
		}
		out = append(out, sub)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate subscribers")
}

// --- deliveries ---

func (s *SQLiteStore) DeliveryExists(ctx context.Context, contentID string, channel model.Channel) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM deliveries WHERE content_id = ? AND channel = ? AND status = ?)`,
		contentID, string(channel), string(model.DeliverySent),
	).Scan(&exists)
	return exists, eris.Wrap(err, "sqlite: delivery exists")
}

func (s *SQLiteStore) ClaimDelivery(ctx context.Context, d *model.Delivery) (bool, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO deliveries (id, content_id, channel, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_id, channel) DO UPDATE SET
			status = excluded.status, error_message = '', updated_at = excluded.updated_at
		WHERE deliveries.status = ?
		RETURNING id`,
		d.ID, d.ContentID, string(d.Channel), string(model.DeliverySending), now, now, string(model.DeliveryFailed),
	).Scan(&d.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: claim delivery %s", d.ContentID)
	}
	d.Status = model.DeliverySending
	d.CreatedAt, d.UpdatedAt = now, now
	return true, nil
}

func (s *SQLiteStore) CompleteDelivery(ctx context.Context, d *model.Delivery) error {
	ids, err := marshalProviderIDs(d.ProviderIDs)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE deliveries SET status = ?, recipients = ?, sent_count = ?, failed_count = ?,
				provider_ids = ?, error_message = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(d.Status), d.Recipients, d.SentCount, d.FailedCount, string(ids), d.ErrorMessage, now,
			d.ID, string(model.DeliverySending),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: complete delivery %s", d.ID)
		}
		if err := checkRowsAffected(res, "claimed delivery", d.ID); err != nil {
			return err
		}
		if d.Status != model.DeliverySent {
			return nil
		}

		var filingID string
		err = tx.QueryRowContext(ctx,
			`UPDATE content SET published_at = ?, updated_at = ? WHERE id = ? RETURNING filing_id`,
			now, now, d.ContentID,
		).Scan(&filingID)
		if err != nil {
			return eris.Wrapf(err, "sqlite: mark content %s published", d.ContentID)
		}
		return advanceFilingLite(ctx, tx, filingID, model.FilingPublished, "")
	})
}

// --- progress ---

func (s *SQLiteStore) AnalyzeProgress(ctx context.Context) (model.Progress, error) {
	return s.progress(ctx, analyzeProgressSQL, "analyze")
}

func (s *SQLiteStore) GenerateProgress(ctx context.Context) (model.Progress, error) {
	return s.progress(ctx, generateProgressSQL, "generate")
}

func (s *SQLiteStore) PublishProgress(ctx context.Context) (model.Progress, error) {
	return s.progress(ctx, publishProgressSQL, "publish")
}

func (s *SQLiteStore) progress(ctx context.Context, query, name string) (model.Progress, error) {
	var p model.Progress
	err := s.db.QueryRowContext(ctx, query).Scan(&p.Total, &p.Done)
	return p, eris.Wrapf(err, "sqlite: %s progress", name)
}

func (s *SQLiteStore) CountFilingsByStatus(ctx context.Context) (map[model.FilingStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, countByStatusSQL)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count filings")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[model.FilingStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan filing count")
		}
		out[model.FilingStatus(status)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate filing counts")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
