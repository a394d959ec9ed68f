package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// TxError wraps any failure that happened inside a transaction.
// The transaction has been rolled back by the time the caller sees it.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("store transaction %s: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// NicheNameOpts controls niche name listing.
type NicheNameOpts struct {
	WithoutCommissionRate bool
}

// Querier is the set of typed record operations. It is implemented both
// outside and inside a transaction.
type Querier interface {
	NicheByID(ctx context.Context, id int64) (*Niche, error)
	NicheByName(ctx context.Context, name string) (*Niche, error)
	ListNiches(ctx context.Context) ([]Niche, error)
	ListNicheNames(ctx context.Context, opts NicheNameOpts) ([]string, error)
	InsertNiche(ctx context.Context, n *Niche) error
	SetCommissionRate(ctx context.Context, nicheID int64, rate float64) error
	LinkNicheKeyword(ctx context.Context, nicheID, keywordID int64) error
	NicheKeywords(ctx context.Context, nicheID int64) ([]Keyword, error)

	KeywordByID(ctx context.Context, id int64) (*Keyword, error)
	KeywordsByIDs(ctx context.Context, ids []int64) ([]Keyword, error)
	FindKeyword(ctx context.Context, key KeywordKey) (*Keyword, error)
	InsertKeyword(ctx context.Context, k *Keyword) error
	AddMetricsReport(ctx context.Context, r *MetricsReport) error
	MetricsReports(ctx context.Context, keywordID int64) (History[MetricsReport], error)
	AddSERPAnalysis(ctx context.Context, a *SERPAnalysis) error
	SERPAnalyses(ctx context.Context, keywordID int64) (History[SERPAnalysis], error)
	AddSuggestionSet(ctx context.Context, s *SuggestionSet) error
	SuggestionSets(ctx context.Context, keywordID int64) (History[SuggestionSet], error)

	ProductByASIN(ctx context.Context, asin string) (*AmazonProduct, error)
	UpsertProduct(ctx context.Context, p *AmazonProduct) error
	LinkNicheProduct(ctx context.Context, nicheID int64, asin string) error
	NicheProducts(ctx context.Context, nicheID int64) ([]AmazonProduct, error)
}

// Store is the persistence interface.
type Store interface {
	Querier

	// InTx runs fn inside one transaction. Any error from fn or from commit
	// rolls the transaction back and is returned as a *TxError. fn must only
	// use q; the store itself is unavailable until fn returns.
	InTx(ctx context.Context, op string, fn func(q Querier) error) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	records
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Single writer: every statement and transaction shares one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{records: records{q: db}, db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InTx(ctx context.Context, op string, fn func(q Querier) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &TxError{Op: op, Err: fmt.Errorf("begin: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&records{q: tx}); err != nil {
		return &TxError{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &TxError{Op: op, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// records implements Querier over either the pool or a transaction.
type records struct {
	q sqlx.ExtContext
}

func (r *records) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, r.q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *records) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.q, dest, query, args...)
}

func (r *records) selectIn(ctx context.Context, dest any, query string, args ...any) error {
	q, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, r.q, dest, r.q.Rebind(q), inArgs...)
}

// classify maps driver constraint errors onto ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
