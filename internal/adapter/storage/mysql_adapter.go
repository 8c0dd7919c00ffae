package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

const (
	maxTxAttempts = 3
	mysqlDeadlock = 1213

	markerPending domain.ReservationStatus = "PENDING"
)

// ledgerTable describes the table whose counter a ledger guards.
type ledgerTable struct {
	kind         domain.ResourceKind
	label        string
	insufficient error

	// counter = counter - ? only when counter >= ?
	debitQuery  string
	creditQuery string
	readQuery   string
}

func newLedgerTable(kind domain.ResourceKind, label, table, keyColumn, counterColumn string, insufficient error) ledgerTable {
	return ledgerTable{
		kind:         kind,
		label:        label,
		insufficient: insufficient,
		debitQuery: fmt.Sprintf(`
		UPDATE %[1]s
		SET %[3]s = %[3]s - ?, version = version + 1, updated_at = NOW(6)
		WHERE %[2]s = ? AND %[3]s >= ?`, table, keyColumn, counterColumn),
		creditQuery: fmt.Sprintf(`
		UPDATE %[1]s
		SET %[3]s = %[3]s + ?, version = version + 1, updated_at = NOW(6)
		WHERE %[2]s = ?`, table, keyColumn, counterColumn),
		readQuery: fmt.Sprintf(`SELECT %[3]s FROM %[1]s WHERE %[2]s = ?`, table, keyColumn, counterColumn),
	}
}

var (
	stockTable  = newLedgerTable(domain.ResourceStock, "product", "products", "product_id", "stock_count", domain.ErrInsufficientStock)
	walletTable = newLedgerTable(domain.ResourceFunds, "customer", "customers", "username", "wallet_balance", domain.ErrInsufficientFunds)
)

// MySQLAdapter reads products and customers and implements both ledgers on
// top of row-level conditional updates. Every hold also writes a row to
// ledger_reservations so reserve and release stay idempotent per request.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT product_id, name, category, price, COALESCE(description, ''), stock_count
		FROM products WHERE product_id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Description, &p.StockCount)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (m *MySQLAdapter) ListAvailable(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, name, category, price, COALESCE(description, ''), stock_count
		FROM products WHERE stock_count > 0
		ORDER BY name, product_id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Description, &p.StockCount); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (m *MySQLAdapter) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	var c domain.Customer
	err := m.db.QueryRowContext(ctx, `
		SELECT username, fullname, wallet_balance
		FROM customers WHERE username = ?`, customerID,
	).Scan(&c.ID, &c.FullName, &c.WalletBalance)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Customer{}, fmt.Errorf("query customer: %w", err)
	}
	return c, nil
}

// SeedProduct and SeedCustomer insert rows that do not exist yet.
func (m *MySQLAdapter) SeedProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT IGNORE INTO products (product_id, name, category, price, description, stock_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Category, p.Price, p.Description, p.StockCount,
	)
	if err != nil {
		return fmt.Errorf("seed product %s: %w", p.ID, err)
	}
	return nil
}

func (m *MySQLAdapter) SeedCustomer(ctx context.Context, c domain.Customer) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT IGNORE INTO customers (username, fullname, wallet_balance)
		VALUES (?, ?, ?)`,
		c.ID, c.FullName, c.WalletBalance,
	)
	if err != nil {
		return fmt.Errorf("seed customer %s: %w", c.ID, err)
	}
	return nil
}

func (m *MySQLAdapter) ReserveStock(ctx context.Context, requestID, productID string, quantity int) (domain.Reservation, int, error) {
	r, left, err := m.reserve(ctx, stockTable, domain.StockReservation(requestID, productID, quantity), quantity)
	if err != nil {
		return domain.Reservation{}, 0, err
	}
	return r, int(left.IntPart()), nil
}

func (m *MySQLAdapter) ReleaseStock(ctx context.Context, r domain.Reservation) error {
	return m.release(ctx, stockTable, r)
}

func (m *MySQLAdapter) ReserveFunds(ctx context.Context, requestID, customerID string, amount decimal.Decimal) (domain.Reservation, decimal.Decimal, error) {
	r, left, err := m.reserve(ctx, walletTable, domain.FundsReservation(requestID, customerID, amount), amount)
	if err != nil {
		return domain.Reservation{}, decimal.Zero, err
	}
	return r, left, nil
}

func (m *MySQLAdapter) ReleaseFunds(ctx context.Context, r domain.Reservation) error {
	return m.release(ctx, walletTable, r)
}

func (m *MySQLAdapter) reserve(ctx context.Context, t ledgerTable, r domain.Reservation, amount any) (domain.Reservation, decimal.Decimal, error) {
	var left decimal.Decimal

	err := m.withTx(ctx, func(tx *sql.Tx) error {
		// The marker row exists before it is locked, so the lock below never
		// falls on a gap that concurrent reservations also insert into.
		if err := placeMarker(ctx, tx, r); err != nil {
			return err
		}
		held, err := lockMarker(ctx, tx, t.kind, r.RequestID)
		if err != nil {
			return err
		}
		if held != nil && held.status == domain.ReservationHeld {
			r = held.reservation
			return readCounter(ctx, tx, t, r.OwnerID, &left)
		}

		result, err := tx.ExecContext(ctx, t.debitQuery, amount, r.OwnerID, amount)
		if err != nil {
			return fmt.Errorf("debit %s: %w", t.label, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit %s: %w", t.label, err)
		}
		if rows == 0 {
			var current decimal.Decimal
			if err := readCounter(ctx, tx, t, r.OwnerID, &current); err != nil {
				return err
			}
			return fmt.Errorf("%s %s has %s left, %v requested: %w", t.label, r.OwnerID, current, amount, t.insufficient)
		}

		if err := readCounter(ctx, tx, t, r.OwnerID, &left); err != nil {
			return err
		}
		return writeMarker(ctx, tx, r, domain.ReservationHeld)
	})
	if err != nil {
		return domain.Reservation{}, decimal.Zero, err
	}
	return r, left, nil
}

func (m *MySQLAdapter) release(ctx context.Context, t ledgerTable, r domain.Reservation) error {
	return m.withTx(ctx, func(tx *sql.Tx) error {
		held, err := lockMarker(ctx, tx, t.kind, r.RequestID)
		if err != nil {
			return err
		}
		if held == nil {
			return fmt.Errorf("%s reservation for request %s: %w", t.label, r.RequestID, domain.ErrReservationNotHeld)
		}
		if held.status != domain.ReservationHeld {
			return nil
		}

		var amount any = held.reservation.Amount
		if t.kind == domain.ResourceStock {
			amount = held.reservation.Quantity
		}
		// A removed owner leaves nothing to credit; the marker still flips.
		if _, err := tx.ExecContext(ctx, t.creditQuery, amount, held.reservation.OwnerID); err != nil {
			return fmt.Errorf("credit %s: %w", t.label, err)
		}
		return writeMarker(ctx, tx, held.reservation, domain.ReservationReleased)
	})
}

// withTx runs fn in a transaction and runs it again when InnoDB picks it as
// a deadlock victim, up to maxTxAttempts times.
func (m *MySQLAdapter) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = m.runTx(ctx, fn)
		if !isDeadlock(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (m *MySQLAdapter) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isDeadlock(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDeadlock
}

func readCounter(ctx context.Context, tx *sql.Tx, t ledgerTable, ownerID string, dest *decimal.Decimal) error {
	err := tx.QueryRowContext(ctx, t.readQuery, ownerID).Scan(dest)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", t.label, ownerID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", t.label, err)
	}
	return nil
}

// lockMarker returns the reservation row for (kind, requestID) locked for
// update, or nil when there is none.
func lockMarker(ctx context.Context, tx *sql.Tx, kind domain.ResourceKind, requestID string) (*marker, error) {
	held := marker{reservation: domain.Reservation{Kind: kind, RequestID: requestID}}
	err := tx.QueryRowContext(ctx, `
		SELECT owner_id, quantity, amount, status
		FROM ledger_reservations
		WHERE request_id = ? AND kind = ?
		FOR UPDATE`, requestID, kind,
	).Scan(&held.reservation.OwnerID, &held.reservation.Quantity, &held.reservation.Amount, &held.status)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock reservation: %w", err)
	}
	return &held, nil
}

// placeMarker inserts a PENDING row for the request unless one exists. A
// rolled back reservation takes the row with it.
func placeMarker(ctx context.Context, tx *sql.Tx, r domain.Reservation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_reservations (request_id, kind, owner_id, quantity, amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(6), NOW(6))
		ON DUPLICATE KEY UPDATE request_id = request_id`,
		r.RequestID, r.Kind, r.OwnerID, r.Quantity, r.Amount, markerPending,
	)
	if err != nil {
		return fmt.Errorf("place reservation: %w", err)
	}
	return nil
}

func writeMarker(ctx context.Context, tx *sql.Tx, r domain.Reservation, status domain.ReservationStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE ledger_reservations
		SET owner_id = ?, quantity = ?, amount = ?, status = ?, updated_at = NOW(6)
		WHERE request_id = ? AND kind = ?`,
		r.OwnerID, r.Quantity, r.Amount, status, r.RequestID, r.Kind,
	)
	if err != nil {
		return fmt.Errorf("write reservation: %w", err)
	}
	return nil
}
