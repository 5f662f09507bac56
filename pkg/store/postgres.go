package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
)

// PostgresReceiptStore is a durable SQL-based implementation.
type PostgresReceiptStore struct {
	db *sql.DB
}

func NewPostgresReceiptStore(db *sql.DB) *PostgresReceiptStore {
	return &PostgresReceiptStore{db: db}
}

// Migrate creates the receipts table if it does not exist.
func (s *PostgresReceiptStore) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS receipts (
			receipt_id TEXT PRIMARY KEY,
			tx_digest TEXT NOT NULL,
			policy TEXT NOT NULL,
			allowed BOOLEAN NOT NULL,
			code SMALLINT NOT NULL,
			reason TEXT NOT NULL,
			checks JSONB,
			timestamp TIMESTAMPTZ NOT NULL,
			signer_id TEXT,
			decision_hash TEXT,
			signature TEXT
		);
		CREATE INDEX IF NOT EXISTS receipts_timestamp_idx ON receipts (timestamp DESC);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate receipts: %w", err)
	}
	return nil
}

func (s *PostgresReceiptStore) Get(ctx context.Context, receiptID string) (*receipts.Receipt, error) {
	query := `
		SELECT receipt_id, tx_digest, policy, allowed, code, reason, checks, timestamp, signer_id, decision_hash, signature
		FROM receipts
		WHERE receipt_id = $1
	`
	r, err := scanPostgresReceipt(s.db.QueryRowContext(ctx, query, receiptID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	return r, err
}

func (s *PostgresReceiptStore) List(ctx context.Context, limit int) ([]*receipts.Receipt, error) {
	query := `
		SELECT receipt_id, tx_digest, policy, allowed, code, reason, checks, timestamp, signer_id, decision_hash, signature
		FROM receipts
		ORDER BY timestamp DESC
		LIMIT $1
	`
	// LIMIT NULL returns every row
	var arg any
	if limit > 0 {
		arg = limit
	}
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*receipts.Receipt
	for rows.Next() {
		r, err := scanPostgresReceipt(rows)
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

func (s *PostgresReceiptStore) Store(ctx context.Context, r *receipts.Receipt) error {
	query := `
		INSERT INTO receipts (receipt_id, tx_digest, policy, allowed, code, reason, checks, timestamp, signer_id, decision_hash, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (receipt_id) DO NOTHING
	`
	checksJSON, err := json.Marshal(r.Checks)
	if err != nil {
		return fmt.Errorf("failed to encode checks: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query,
		r.ReceiptID,
		r.TxDigest,
		r.PolicyHex,
		r.Allowed,
		r.Code,
		r.Reason,
		string(checksJSON),
		r.Timestamp,
		r.SignerID,
		r.DecisionHash,
		r.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *PostgresReceiptStore) Close() error {
	return s.db.Close()
}

func scanPostgresReceipt(row rowScanner) (*receipts.Receipt, error) {
	var (
		r          receipts.Receipt
		checksJSON sql.NullString
		signerID   sql.NullString
		hash       sql.NullString
		signature  sql.NullString
	)
	err := row.Scan(&r.ReceiptID, &r.TxDigest, &r.PolicyHex, &r.Allowed, &r.Code, &r.Reason, &checksJSON, &r.Timestamp, &signerID, &hash, &signature)
	if err != nil {
		return nil, err
	}
	r.SignerID = signerID.String
	r.DecisionHash = hash.String
	r.Signature = signature.String
	if r.Checks, err = decodeChecks(checksJSON); err != nil {
		return nil, err
	}
	return &r, nil
}
