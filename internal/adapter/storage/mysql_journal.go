package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

const (
	defaultJournalPageSize = 100
	mysqlDuplicateEntry    = 1062
)

const saleColumns = `seq, transaction_id, request_id, customer_id, product_id, product_name,
		quantity, unit_price, total, balance_after, status, created_at`

// MySQLJournal is the append-only sales table. request_id is unique, which is
// what makes Append exactly-once per purchase request.
type MySQLJournal struct {
	db       *sql.DB
	pageSize int
}

func NewMySQLJournal(db *sql.DB, pageSize int) *MySQLJournal {
	if pageSize <= 0 {
		pageSize = defaultJournalPageSize
	}
	return &MySQLJournal{db: db, pageSize: pageSize}
}

func (j *MySQLJournal) Append(ctx context.Context, record domain.SaleRecord) (domain.SaleRecord, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = domain.SaleStatusCommitted
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sales (transaction_id, request_id, customer_id, product_id, product_name,
			quantity, unit_price, total, balance_after, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.TransactionID, record.RequestID, record.CustomerID, record.ProductID, record.ProductName,
		record.Quantity, record.UnitPrice, record.Total, record.BalanceAfter, record.Status, record.CreatedAt,
	)
	if err == nil {
		return record, nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		existing, lookupErr := j.GetByRequestID(ctx, record.RequestID)
		if lookupErr == nil {
			return existing, nil
		}
		return domain.SaleRecord{}, fmt.Errorf("insert sale: %w", errors.Join(err, lookupErr))
	}
	return domain.SaleRecord{}, fmt.Errorf("insert sale: %w", err)
}

func (j *MySQLJournal) GetByID(ctx context.Context, transactionID string) (domain.SaleRecord, error) {
	return j.getOne(ctx, "transaction_id", transactionID)
}

func (j *MySQLJournal) GetByRequestID(ctx context.Context, requestID string) (domain.SaleRecord, error) {
	return j.getOne(ctx, "request_id", requestID)
}

func (j *MySQLJournal) getOne(ctx context.Context, column, value string) (domain.SaleRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE `+column+` = ?`, value)

	record, _, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SaleRecord{}, fmt.Errorf("sale with %s %s: %w", column, value, domain.ErrNotFound)
	}
	if err != nil {
		return domain.SaleRecord{}, fmt.Errorf("query sale: %w", err)
	}
	return record, nil
}

func (j *MySQLJournal) ListByCustomer(ctx context.Context, customerID string) iter.Seq2[domain.SaleRecord, error] {
	return j.list(ctx, "customer_id", customerID)
}

func (j *MySQLJournal) ListByProduct(ctx context.Context, productID string) iter.Seq2[domain.SaleRecord, error] {
	return j.list(ctx, "product_id", productID)
}

// list pages through the matching rows with a (created_at, seq) cursor. A
// page is read fully and its rows closed before anything is yielded.
func (j *MySQLJournal) list(ctx context.Context, column, value string) iter.Seq2[domain.SaleRecord, error] {
	first := `SELECT ` + saleColumns + ` FROM sales WHERE ` + column + ` = ?
		ORDER BY created_at, seq LIMIT ?`
	next := `SELECT ` + saleColumns + ` FROM sales WHERE ` + column + ` = ?
		AND (created_at > ? OR (created_at = ? AND seq > ?))
		ORDER BY created_at, seq LIMIT ?`

	return func(yield func(domain.SaleRecord, error) bool) {
		var (
			afterTime time.Time
			afterSeq  int64
			started   bool
		)
		for {
			var page []domain.SaleRecord
			var err error
			if !started {
				page, afterTime, afterSeq, err = j.page(ctx, first, value, j.pageSize)
				started = true
			} else {
				page, afterTime, afterSeq, err = j.page(ctx, next, value, afterTime, afterTime, afterSeq, j.pageSize)
			}
			if err != nil {
				yield(domain.SaleRecord{}, err)
				return
			}
			for _, record := range page {
				if !yield(record, nil) {
					return
				}
			}
			if len(page) < j.pageSize {
				return
			}
		}
	}
}

func (j *MySQLJournal) page(ctx context.Context, query string, args ...any) ([]domain.SaleRecord, time.Time, int64, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, time.Time{}, 0, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var (
		records  []domain.SaleRecord
		lastTime time.Time
		lastSeq  int64
	)
	for rows.Next() {
		record, seq, err := scanSale(rows)
		if err != nil {
			return nil, time.Time{}, 0, fmt.Errorf("scan sale: %w", err)
		}
		records = append(records, record)
		lastTime, lastSeq = record.CreatedAt, seq
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, 0, fmt.Errorf("iterate sales: %w", err)
	}
	return records, lastTime, lastSeq, nil
}

func (j *MySQLJournal) MarkReversed(ctx context.Context, transactionID string) (domain.SaleRecord, error) {
	_, err := j.db.ExecContext(ctx, `
		UPDATE sales SET status = ?
		WHERE transaction_id = ? AND status = ?`,
		domain.SaleStatusReversed, transactionID, domain.SaleStatusCommitted,
	)
	if err != nil {
		return domain.SaleRecord{}, fmt.Errorf("reverse sale: %w", err)
	}
	return j.GetByID(ctx, transactionID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (domain.SaleRecord, int64, error) {
	var (
		r   domain.SaleRecord
		seq int64
	)
	err := row.Scan(&seq, &r.TransactionID, &r.RequestID, &r.CustomerID, &r.ProductID, &r.ProductName,
		&r.Quantity, &r.UnitPrice, &r.Total, &r.BalanceAfter, &r.Status, &r.CreatedAt)
	return r, seq, err
}
