package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/qx/ledgerbot/api/internal/metrics"
	"github.com/qx/ledgerbot/api/internal/model"
)

// Postgres holds the pool shared by PostgresLog and PostgresMembers.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dataSource string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// RunMigrations creates the ledger tables.
func (p *Postgres) RunMigrations(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_transactions (
			chat_id BIGINT NOT NULL,
			seq_no BIGINT NOT NULL,
			id UUID NOT NULL UNIQUE,
			type TEXT NOT NULL,
			mode TEXT NOT NULL DEFAULT '',
			payer_id BIGINT NOT NULL DEFAULT 0,
			counterparties BIGINT[] NOT NULL DEFAULT '{}',
			amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			recorded_by BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (chat_id, seq_no)
		);
		CREATE TABLE IF NOT EXISTS ledger_members (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			handle TEXT NOT NULL DEFAULT '',
			aliases TEXT[] NOT NULL DEFAULT '{}',
			joined_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (chat_id, user_id)
		);
	`)
	return err
}

// PostgresLog keeps one row per transaction. A RESET is a sentinel row.
type PostgresLog struct {
	db *Postgres
}

func NewPostgresLog(db *Postgres) *PostgresLog {
	return &PostgresLog{db: db}
}

func (l *PostgresLog) Append(ctx context.Context, t *model.Transaction) (int64, error) {
	start := time.Now()
	defer func() { metrics.LogAppendDuration.WithLabelValues("postgres").Observe(time.Since(start).Seconds()) }()

	tx, err := l.db.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize appends to the same chat across processes
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, t.ChatID); err != nil {
		return 0, err
	}

	var seq int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq_no), 0) + 1 FROM ledger_transactions WHERE chat_id = $1`,
		t.ChatID,
	).Scan(&seq); err != nil {
		return 0, err
	}

	counterparties := t.Counterparties
	if counterparties == nil {
		counterparties = []int64{}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_transactions
		 (chat_id, seq_no, id, type, mode, payer_id, counterparties, amount, description, recorded_by, created_at)
		 VALUES ($1, $2, $3::uuid, $4, $5, $6, $7, $8::numeric, $9, $10, $11)`,
		t.ChatID, seq, t.ID.String(), string(t.Type), string(t.Mode), t.Payer, counterparties,
		t.Amount.StringFixed(2), t.Description, t.RecordedBy, t.Timestamp,
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	t.Seq = seq
	return seq, nil
}

func (l *PostgresLog) ReadAll(ctx context.Context, chatID int64) ([]model.Transaction, error) {
	rows, err := l.db.pool.Query(ctx,
		`SELECT seq_no, id::text, type, mode, payer_id, counterparties, amount::text, description, recorded_by, created_at
		 FROM ledger_transactions
		 WHERE chat_id = $1
		 ORDER BY seq_no`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var (
			t              model.Transaction
			id, typ, mode  string
			amount         string
			counterparties []int64
		)
		if err := rows.Scan(&t.Seq, &id, &typ, &mode, &t.Payer, &counterparties, &amount, &t.Description, &t.RecordedBy, &t.Timestamp); err != nil {
			return nil, err
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", t.Seq, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", t.Seq, err)
		}
		t.ChatID = chatID
		t.Type = model.TxType(typ)
		t.Mode = model.SplitMode(mode)
		if len(counterparties) > 0 {
			t.Counterparties = counterparties
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PostgresMembers stores the registry in ledger_members.
type PostgresMembers struct {
	db *Postgres
}

func NewPostgresMembers(db *Postgres) *PostgresMembers {
	return &PostgresMembers{db: db}
}

func (s *PostgresMembers) Upsert(ctx context.Context, chatID int64, m model.Member) error {
	aliases := m.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO ledger_members (chat_id, user_id, display_name, handle, aliases, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (chat_id, user_id) DO UPDATE
		 SET display_name = EXCLUDED.display_name,
			 handle = EXCLUDED.handle,
			 aliases = EXCLUDED.aliases`,
		chatID, m.ID, m.DisplayName, m.Handle, aliases, m.JoinedAt,
	)
	return err
}

func (s *PostgresMembers) List(ctx context.Context, chatID int64) ([]model.Member, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT user_id, display_name, handle, aliases, joined_at
		 FROM ledger_members
		 WHERE chat_id = $1
		 ORDER BY user_id`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Member, error) {
		var m model.Member
		err := row.Scan(&m.ID, &m.DisplayName, &m.Handle, &m.Aliases, &m.JoinedAt)
		return m, err
	})
}
