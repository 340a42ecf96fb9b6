// Package sqlite is a single-file record store on modernc.org/sqlite.
//
// Each record is stored as its flat JSON document next to the handful of
// columns queries filter on.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// Migrations returns the schema statements, one statement per string.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS transacciones (
			id              TEXT PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			tipo            TEXT NOT NULL,
			fecha           TEXT NOT NULL,
			hora            TEXT NOT NULL DEFAULT '',
			importado       INTEGER NOT NULL DEFAULT 0,
			importado_desde TEXT NOT NULL DEFAULT '',
			doc             TEXT NOT NULL,
			created_at      TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_owner_tipo_fecha ON transacciones(owner_id, tipo, fecha)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_owner_import ON transacciones(owner_id, importado, importado_desde)`,

		`CREATE TABLE IF NOT EXISTS configuracion (
			owner_id   TEXT NOT NULL,
			doc_key    TEXT NOT NULL,
			payload    TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (owner_id, doc_key)
		)`,
	}
}

// Store implements store.Store on a sqlite database.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Open: sql open: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range Migrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("Open: applying schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const insertSQL = `INSERT INTO transacciones
	(id, owner_id, tipo, fecha, hora, importado, importado_desde, doc)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// horaKey sorts a blank hora as midnight.
const horaKey = "COALESCE(NULLIF(hora, ''), '00:00')"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, e execer, tx *domain.Transaction) (string, error) {
	c := tx.Clone()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	_, err = e.ExecContext(ctx, insertSQL,
		c.ID, c.OwnerID, string(c.Tipo()), c.Fecha, c.Hora, c.Importado, string(c.ImportadoDesde), string(doc))
	if err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	return c.ID, nil
}

// CreateTransaction inserts one record.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) (string, error) {
	id, err := insert(ctx, s.db, tx)
	if err != nil {
		return "", fmt.Errorf("CreateTransaction: %w", err)
	}
	return id, nil
}

// CreateTransactions inserts txs inside one SQL transaction.
func (s *Store) CreateTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) > store.MaxBatchSize {
		return fmt.Errorf("CreateTransactions: %d records: %w", len(txs), store.ErrBatchTooLarge)
	}
	if len(txs) == 0 {
		return nil
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("CreateTransactions: begin: %w", err)
	}
	defer sqlTx.Rollback()

	ids := make([]string, len(txs))
	for i, tx := range txs {
		id, err := insert(ctx, sqlTx, tx)
		if err != nil {
			return fmt.Errorf("CreateTransactions: row %d: %w", i, err)
		}
		ids[i] = id
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("CreateTransactions: commit: %w", err)
	}
	for i, tx := range txs {
		tx.ID = ids[i]
	}
	return nil
}

// GetTransaction loads one record.
func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (*domain.Transaction, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM transacciones WHERE id = ? AND owner_id = ?`, id, ownerID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: query: %w", err)
	}
	return decode(id, doc)
}

// UpdateTransaction replaces every field of a record.
func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	doc, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: marshal: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE transacciones
		SET tipo = ?, fecha = ?, hora = ?, importado = ?, importado_desde = ?, doc = ?
		WHERE id = ? AND owner_id = ?`,
		string(tx.Tipo()), tx.Fecha, tx.Hora, tx.Importado, string(tx.ImportadoDesde), string(doc),
		tx.ID, tx.OwnerID)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: exec: %w", err)
	}
	return requireOneRow(res)
}

// UpdateCompraStatus rewrites the status of a Compra record.
func (s *Store) UpdateCompraStatus(ctx context.Context, ownerID, id string, status domain.CompraStatus) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UpdateCompraStatus: begin: %w", err)
	}
	defer sqlTx.Rollback()

	var doc string
	err = sqlTx.QueryRowContext(ctx,
		`SELECT doc FROM transacciones WHERE id = ? AND owner_id = ?`, id, ownerID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("UpdateCompraStatus: query: %w", err)
	}

	tx, err := decode(id, doc)
	if err != nil {
		return err
	}
	c, ok := tx.Compra()
	if !ok {
		return fmt.Errorf("UpdateCompraStatus: record %s is a %s", id, tx.Tipo())
	}
	c.Status = status

	updated, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("UpdateCompraStatus: marshal: %w", err)
	}
	if _, err := sqlTx.ExecContext(ctx, `UPDATE transacciones SET doc = ? WHERE id = ?`, string(updated), id); err != nil {
		return fmt.Errorf("UpdateCompraStatus: exec: %w", err)
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("UpdateCompraStatus: commit: %w", err)
	}
	return nil
}

// DeleteTransaction removes a record.
func (s *Store) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transacciones WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: exec: %w", err)
	}
	return requireOneRow(res)
}

// ListTransactions runs f as a query.
func (s *Store) ListTransactions(ctx context.Context, f store.Filter) ([]*domain.Transaction, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}
	order := "fecha ASC, " + horaKey + " ASC, id ASC"
	if f.Newest {
		order = "fecha DESC, " + horaKey + " DESC, id ASC"
	}
	q := `SELECT id, doc FROM transacciones WHERE ` + where + ` ORDER BY ` + order
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		tx, err := decode(id, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: rows: %w", err)
	}
	return out, nil
}

// CountTransactions counts the records matching f.
func (s *Store) CountTransactions(ctx context.Context, f store.Filter) (int, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transacciones WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountTransactions: query: %w", err)
	}
	return n, nil
}

// GetConfigDoc decodes a config document into dst.
func (s *Store) GetConfigDoc(ctx context.Context, ownerID, key string, dst any) error {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM configuracion WHERE owner_id = ? AND doc_key = ?`, ownerID, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("GetConfigDoc: query: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return fmt.Errorf("GetConfigDoc: decode %s: %w", key, err)
	}
	return nil
}

// PutConfigDoc upserts a config document.
func (s *Store) PutConfigDoc(ctx context.Context, ownerID, key string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("PutConfigDoc: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO configuracion (owner_id, doc_key, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, doc_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		ownerID, key, string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("PutConfigDoc: exec: %w", err)
	}
	return nil
}

func whereClause(f store.Filter) (string, []any, error) {
	if f.OwnerID == "" {
		return "", nil, store.ErrOwnerRequired
	}
	conds := []string{"owner_id = ?"}
	args := []any{f.OwnerID}
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if f.Tipo != "" {
		add("tipo = ?", string(f.Tipo))
	}
	if f.Fecha != "" {
		add("fecha = ?", f.Fecha)
	}
	if f.From != "" {
		add("fecha >= ?", f.From)
	}
	if f.To != "" {
		add("fecha <= ?", f.To)
	}
	if f.Importado != nil {
		add("importado = ?", *f.Importado)
	}
	if f.ImportadoDesde != "" {
		add("importado_desde = ?", string(f.ImportadoDesde))
	}
	return strings.Join(conds, " AND "), args, nil
}

func decode(id, doc string) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := json.Unmarshal([]byte(doc), &tx); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}
	tx.ID = id
	return &tx, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
