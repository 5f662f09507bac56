package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
	"github.com/Mindburn-Labs/shadowlock/pkg/shadowlock"
)

// sqliteTimeLayout is fixed-width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteReceiptStore struct {
	db *sql.DB
}

func NewSQLiteReceiptStore(db *sql.DB) (*SQLiteReceiptStore, error) {
	s := &SQLiteReceiptStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteReceiptStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS receipts (
        receipt_id TEXT PRIMARY KEY,
        tx_digest TEXT NOT NULL,
        policy TEXT NOT NULL,
        allowed INTEGER NOT NULL,
        code INTEGER NOT NULL,
        reason TEXT NOT NULL,
        checks JSON,
        timestamp DATETIME,
        signer_id TEXT,
        decision_hash TEXT,
        signature TEXT
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteReceiptStore) Get(ctx context.Context, receiptID string) (*receipts.Receipt, error) {
	query := `
        SELECT receipt_id, tx_digest, policy, allowed, code, reason, checks, timestamp, signer_id, decision_hash, signature
        FROM receipts
        WHERE receipt_id = ?
    `
	r, err := scanSQLiteReceipt(s.db.QueryRowContext(ctx, query, receiptID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	return r, err
}

func (s *SQLiteReceiptStore) List(ctx context.Context, limit int) ([]*receipts.Receipt, error) {
	query := `
        SELECT receipt_id, tx_digest, policy, allowed, code, reason, checks, timestamp, signer_id, decision_hash, signature
        FROM receipts
        ORDER BY timestamp DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*receipts.Receipt
	for rows.Next() {
		r, err := scanSQLiteReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteReceiptStore) Store(ctx context.Context, r *receipts.Receipt) error {
	query := `INSERT OR IGNORE INTO receipts (
		receipt_id, tx_digest, policy, allowed, code, reason, checks, timestamp, signer_id, decision_hash, signature
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	checksJSON, err := json.Marshal(r.Checks)
	if err != nil {
		return fmt.Errorf("failed to encode checks: %w", err)
	}
	timestamp := r.Timestamp.UTC().Format(sqliteTimeLayout)

	_, err = s.db.ExecContext(ctx, query,
		r.ReceiptID, r.TxDigest, r.PolicyHex, r.Allowed, r.Code, r.Reason, string(checksJSON), timestamp, r.SignerID, r.DecisionHash, r.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *SQLiteReceiptStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteReceipt(row rowScanner) (*receipts.Receipt, error) {
	var (
		r          receipts.Receipt
		checksJSON sql.NullString
		timestamp  string
		signerID   sql.NullString
		hash       sql.NullString
		signature  sql.NullString
	)
	err := row.Scan(&r.ReceiptID, &r.TxDigest, &r.PolicyHex, &r.Allowed, &r.Code, &r.Reason, &checksJSON, &timestamp, &signerID, &hash, &signature)
	if err != nil {
		return nil, err
	}
	r.Timestamp = parseTime(timestamp)
	r.SignerID = signerID.String
	r.DecisionHash = hash.String
	r.Signature = signature.String
	if r.Checks, err = decodeChecks(checksJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeChecks(raw sql.NullString) ([]shadowlock.Check, error) {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil, nil
	}
	var checks []shadowlock.Check
	if err := json.Unmarshal([]byte(raw.String), &checks); err != nil {
		return nil, fmt.Errorf("failed to decode checks: %w", err)
	}
	return checks, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

// limitArg maps "no limit" onto SQL's -1 / ALL convention.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
