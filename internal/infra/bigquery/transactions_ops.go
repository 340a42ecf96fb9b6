package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// CreateTransaction inserts one record through a load job.
func (r *Repository) CreateTransaction(ctx context.Context, tx *domain.Transaction) (string, error) {
	if err := r.load(ctx, []*domain.Transaction{tx}); err != nil {
		return "", fmt.Errorf("CreateTransaction: %w", err)
	}
	return tx.ID, nil
}

// CreateTransactions inserts txs as one load job, so the batch either lands
// completely or not at all.
func (r *Repository) CreateTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) > store.MaxBatchSize {
		return fmt.Errorf("CreateTransactions: %d records: %w", len(txs), store.ErrBatchTooLarge)
	}
	if len(txs) == 0 {
		return nil
	}
	if err := r.load(ctx, txs); err != nil {
		return fmt.Errorf("CreateTransactions: %w", err)
	}
	return nil
}

// load writes txs as newline-delimited JSON and appends them with a load job.
// Load jobs skip the streaming buffer, so the rows are immediately visible to
// UPDATE and DELETE statements.
func (r *Repository) load(ctx context.Context, txs []*domain.Transaction) error {
	body, err := encodeRows(txs, time.Now())
	if err != nil {
		return err
	}

	src := bigquery.NewReaderSource(bytes.NewReader(body))
	src.SourceFormat = bigquery.JSON

	loader := r.client.DatasetInProject(r.project, r.dataset).Table(transactionsTable).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteAppend

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("starting load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load job failed: %w", err)
	}
	return nil
}

// encodeRows assigns missing IDs and timestamps and renders one JSON object
// per line.
func encodeRows(txs []*domain.Transaction, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, tx := range txs {
		if tx.OwnerID == "" {
			return nil, store.ErrOwnerRequired
		}
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		if tx.CreadoEn.IsZero() {
			tx.CreadoEn = now
		}
		row, err := RowFromTransaction(tx)
		if err != nil {
			return nil, err
		}
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("encoding row %s: %w", tx.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// GetTransaction returns one record by owner and id.
func (r *Repository) GetTransaction(ctx context.Context, ownerID, id string) (*domain.Transaction, error) {
	q := r.client.Query(`SELECT * FROM ` + r.table(transactionsTable) + `
		WHERE owner_id = @owner_id AND id = @id
		LIMIT 1`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "id", Value: id},
	}

	rows, err := readRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("GetTransaction: %s: %w", id, store.ErrNotFound)
	}
	return rows[0], nil
}

// UpdateTransaction rewrites every mutable column of an existing record.
func (r *Repository) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	row, err := RowFromTransaction(tx)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	sql, params := updateStatement(r.table(transactionsTable), row)

	n, err := r.runDML(ctx, sql, params)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateTransaction: %s: %w", tx.ID, store.ErrNotFound)
	}
	return nil
}

func updateStatement(table string, row *TransactionRow) (string, []bigquery.QueryParameter) {
	values := row.values()
	sets := make([]string, 0, len(mutableColumns))
	params := make([]bigquery.QueryParameter, 0, len(mutableColumns)+2)
	for _, col := range mutableColumns {
		sets = append(sets, col+" = @"+col)
		params = append(params, bigquery.QueryParameter{Name: col, Value: values[col]})
	}
	params = append(params,
		bigquery.QueryParameter{Name: "owner_id", Value: row.OwnerID},
		bigquery.QueryParameter{Name: "id", Value: row.ID},
	)
	sql := "UPDATE " + table + "\n\t\tSET " + strings.Join(sets, ", ") +
		"\n\t\tWHERE owner_id = @owner_id AND id = @id"
	return sql, params
}

// UpdateCompraStatus sets the status column of a Compra record.
func (r *Repository) UpdateCompraStatus(ctx context.Context, ownerID, id string, status domain.CompraStatus) error {
	n, err := r.runDML(ctx, `
		UPDATE `+r.table(transactionsTable)+`
		SET status = @status
		WHERE owner_id = @owner_id AND id = @id AND tipo = @tipo
	`, []bigquery.QueryParameter{
		{Name: "status", Value: string(status)},
		{Name: "owner_id", Value: ownerID},
		{Name: "id", Value: id},
		{Name: "tipo", Value: string(domain.TipoCompra)},
	})
	if err != nil {
		return fmt.Errorf("UpdateCompraStatus: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateCompraStatus: %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListTransactions runs a filtered SELECT.
func (r *Repository) ListTransactions(ctx context.Context, f store.Filter) ([]*domain.Transaction, error) {
	where, params, err := whereClause(f)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	sql := "SELECT * FROM " + r.table(transactionsTable) + " WHERE " + where + " ORDER BY " + orderBy(f.Newest)
	if f.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	q := r.client.Query(sql)
	q.Parameters = params

	rows, err := readRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return rows, nil
}

// CountTransactions runs a filtered COUNT(*).
func (r *Repository) CountTransactions(ctx context.Context, f store.Filter) (int, error) {
	where, params, err := whereClause(f)
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	q := r.client.Query("SELECT COUNT(*) AS n FROM " + r.table(transactionsTable) + " WHERE " + where)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: query read: %w", err)
	}
	var res struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&res); err != nil {
		return 0, fmt.Errorf("CountTransactions: reading count: %w", err)
	}
	return int(res.N), nil
}

func readRows(ctx context.Context, q *bigquery.Query) ([]*domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var out []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating rows: %w", err)
		}
		tx, err := row.ToTransaction()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// whereClause renders f as a parameterized predicate. The owner is mandatory.
func whereClause(f store.Filter) (string, []bigquery.QueryParameter, error) {
	if f.OwnerID == "" {
		return "", nil, store.ErrOwnerRequired
	}
	conds := []string{"owner_id = @owner_id"}
	params := []bigquery.QueryParameter{{Name: "owner_id", Value: f.OwnerID}}

	addDate := func(name, op, value string) error {
		d, err := civil.ParseDate(value)
		if err != nil {
			return fmt.Errorf("filter %s %q: %w", name, value, err)
		}
		conds = append(conds, "fecha "+op+" @"+name)
		params = append(params, bigquery.QueryParameter{Name: name, Value: d})
		return nil
	}

	if f.Tipo != "" {
		conds = append(conds, "tipo = @tipo")
		params = append(params, bigquery.QueryParameter{Name: "tipo", Value: string(f.Tipo)})
	}
	if f.Fecha != "" {
		if err := addDate("fecha", "=", f.Fecha); err != nil {
			return "", nil, err
		}
	}
	if f.From != "" {
		if err := addDate("desde", ">=", f.From); err != nil {
			return "", nil, err
		}
	}
	if f.To != "" {
		if err := addDate("hasta", "<=", f.To); err != nil {
			return "", nil, err
		}
	}
	if f.Importado != nil {
		conds = append(conds, "importado = @importado")
		params = append(params, bigquery.QueryParameter{Name: "importado", Value: *f.Importado})
	}
	if f.ImportadoDesde != "" {
		conds = append(conds, "importado_desde = @importado_desde")
		params = append(params, bigquery.QueryParameter{Name: "importado_desde", Value: string(f.ImportadoDesde)})
	}
	return strings.Join(conds, " AND "), params, nil
}

func orderBy(newest bool) string {
	dir := "ASC"
	if newest {
		dir = "DESC"
	}
	return fmt.Sprintf("fecha %[1]s, IF(hora = '', '00:00', hora) %[1]s, id", dir)
}
