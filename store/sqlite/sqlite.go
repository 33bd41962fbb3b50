/*
Package sqlite provides the SQLite-backed implementation of cellar.Store.

PURPOSE:
  Persists products and bookings and gives the ledger the one thing it
  needs from storage: a transaction in which the booking row and the
  owning product's quantity/value change together or not at all.

KEY TABLES:
  products: catalog entries with derived quantity/value columns
  bookings: stock movements, FK to products

CONSTRAINTS:
  idx_products_identity: unique over the six identifying fields, backs
  duplicate-product detection at the store level
  fk bookings.product_id -> products.id: no booking without its product

CONCURRENCY:
  Uses sync.RWMutex so only one writer runs at a time; each mutation is a
  single database transaction. The stock-sufficiency check and the
  quantity update therefore never interleave with another writer on the
  same product.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/cellar.db")   // ":memory:" for tests
  if err != nil { ... }
  defer store.Close()
  ledger := cellar.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - cellar/store.go: interface definitions
  - cellar/ledger.go, cellar/registry.go: the transaction callers
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vintry/cellar-engine/cellar"
)

const dateLayout = "2006-01-02"

// Store implements cellar.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer anyway, and ":memory:"
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		producer TEXT NOT NULL DEFAULT '',
		varietal TEXT NOT NULL DEFAULT '',
		vineyard TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		vintage TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		alcohol TEXT NOT NULL DEFAULT '',
		sugar TEXT NOT NULL DEFAULT '',
		acidity TEXT NOT NULL DEFAULT '',
		info TEXT NOT NULL DEFAULT '',
		order_link TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		unit_price TEXT NOT NULL DEFAULT '0',
		quantity INTEGER NOT NULL DEFAULT 0,
		total_value TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Backs duplicate-product detection: one catalog entry per identity tuple.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_products_identity
		ON products(producer, varietal, vineyard, country, vintage, location);

	CREATE INDEX IF NOT EXISTS idx_products_location
		ON products(location);

	CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		direction TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		booking_date TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products (id)
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_product
		ON bookings(product_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_date
		ON bookings(booking_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx so the row helpers can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// READ SIDE (cellar.Store interface)
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id int64) (*cellar.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProduct(ctx, s.db, id)
}

func (s *Store) ListProducts(ctx context.Context, filter cellar.ProductFilter) ([]cellar.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + productColumns + `
		FROM products
	`
	var (
		conds []string
		args  []any
	)
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		conds = append(conds, `(producer LIKE ? OR varietal LIKE ? OR vineyard LIKE ?
			OR country LIKE ? OR vintage LIKE ? OR location LIKE ?)`)
		args = append(args, like, like, like, like, like, like)
	}
	if filter.InStockOnly {
		conds = append(conds, "quantity <> 0")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY producer, varietal, vineyard, country, vintage"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []cellar.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*cellar.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBooking(ctx, s.db, id)
}

func (s *Store) ListBookings(ctx context.Context, productID *int64) ([]cellar.BookingWithProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT b.id, b.product_id, b.direction, b.category, b.booking_date,
		       b.quantity, b.notes, b.created_by, b.created_at,
		       p.producer, p.varietal, p.vineyard, p.country, p.vintage, p.location
		FROM bookings b
		LEFT OUTER JOIN products p ON b.product_id = p.id
	`
	var args []any
	if productID != nil {
		query += " WHERE b.product_id = ?"
		args = append(args, *productID)
	}
	query += " ORDER BY b.booking_date, b.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []cellar.BookingWithProduct
	for rows.Next() {
		var (
			bw                   cellar.BookingWithProduct
			date, createdAt      string
			producer, varietal   sql.NullString
			vineyard, country    sql.NullString
			vintage, location    sql.NullString
		)
		if err := rows.Scan(
			&bw.ID, &bw.ProductID, &bw.Booking.Direction, &bw.Category, &date,
			&bw.Booking.Quantity, &bw.Booking.Notes, &bw.CreatedBy, &createdAt,
			&producer, &varietal, &vineyard, &country, &vintage, &location,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bw.Date, _ = time.Parse(dateLayout, date)
		bw.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		bw.Producer = producer.String
		bw.Varietal = varietal.String
		bw.Vineyard = vineyard.String
		bw.Country = country.String
		bw.Vintage = vintage.String
		bw.Location = location.String
		bookings = append(bookings, bw)
	}
	return bookings, rows.Err()
}

// StockByLocation sums quantity and value per storage location. Values are
// summed as decimals in Go so money stays exact.
func (s *Store) StockByLocation(ctx context.Context) ([]cellar.LocationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT location, quantity, total_value
		FROM products
		ORDER BY location
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock by location: %w", err)
	}
	defer rows.Close()

	var summaries []cellar.LocationSummary
	for rows.Next() {
		var (
			location string
			quantity int
			value    string
		)
		if err := rows.Scan(&location, &quantity, &value); err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("corrupt total_value %q for location %q: %w", value, location, err)
		}
		if n := len(summaries); n > 0 && summaries[n-1].Location == location {
			summaries[n-1].Quantity += quantity
			summaries[n-1].Value = summaries[n-1].Value.Add(v)
			continue
		}
		summaries = append(summaries, cellar.LocationSummary{
			Location: location,
			Quantity: quantity,
			Value:    v,
		})
	}
	return summaries, rows.Err()
}

func (s *Store) MonthlyActivity(ctx context.Context) ([]cellar.MonthlyActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(booking_date, 1, 7) AS month,
		       category,
		       SUM(CASE WHEN direction = 'inbound' THEN quantity ELSE 0 END),
		       SUM(CASE WHEN direction = 'outbound' THEN quantity ELSE 0 END)
		FROM bookings
		GROUP BY month, category
		ORDER BY month DESC, category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly activity: %w", err)
	}
	defer rows.Close()

	var activity []cellar.MonthlyActivity
	for rows.Next() {
		var a cellar.MonthlyActivity
		if err := rows.Scan(&a.Month, &a.Category, &a.Inbound, &a.Outbound); err != nil {
			return nil, err
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

// =============================================================================
// TRANSACTIONS (cellar.Store WithTx)
// =============================================================================

// WithTx executes fn within a database transaction. The mutex serializes
// writers; the deferred Rollback is a no-op after Commit.
func (s *Store) WithTx(ctx context.Context, fn func(tx cellar.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore implements cellar.Tx against one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetProduct(ctx context.Context, id int64) (*cellar.Product, error) {
	return getProduct(ctx, ts.tx, id)
}

func (ts *txStore) FindProductByIdentity(ctx context.Context, identity cellar.Identity) (int64, error) {
	var id int64
	err := ts.tx.QueryRowContext(ctx, `
		SELECT id FROM products
		WHERE producer = ? AND varietal = ? AND vineyard = ?
		  AND country = ? AND vintage = ? AND location = ?
	`, identity.Producer, identity.Varietal, identity.Vineyard,
		identity.Country, identity.Vintage, identity.Location,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up product identity: %w", err)
	}
	return id, nil
}

func (ts *txStore) InsertProduct(ctx context.Context, p *cellar.Product) (int64, error) {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO products
		(producer, varietal, vineyard, country, vintage, location,
		 alcohol, sugar, acidity, info, order_link, notes,
		 unit_price, quantity, total_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Producer, p.Varietal, p.Vineyard, p.Country, p.Vintage, p.Location,
		p.Alcohol, p.Sugar, p.Acidity, p.Info, p.OrderLink, p.Notes,
		p.UnitPrice.String(), p.Quantity, p.TotalValue.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("%w: identity already registered", cellar.ErrDuplicateProduct)
		}
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

func (ts *txStore) UpdateProduct(ctx context.Context, p *cellar.Product) error {
	_, err := ts.tx.ExecContext(ctx, `
		UPDATE products SET
			producer = ?, varietal = ?, vineyard = ?, country = ?, vintage = ?, location = ?,
			alcohol = ?, sugar = ?, acidity = ?, info = ?, order_link = ?, notes = ?,
			unit_price = ?, total_value = ?
		WHERE id = ?
	`,
		p.Producer, p.Varietal, p.Vineyard, p.Country, p.Vintage, p.Location,
		p.Alcohol, p.Sugar, p.Acidity, p.Info, p.OrderLink, p.Notes,
		p.UnitPrice.String(), p.TotalValue.String(), p.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: identity already registered", cellar.ErrDuplicateProduct)
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (ts *txStore) SetProductStock(ctx context.Context, id int64, quantity int, value decimal.Decimal) error {
	res, err := ts.tx.ExecContext(ctx,
		"UPDATE products SET quantity = ?, total_value = ? WHERE id = ?",
		quantity, value.String(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set product stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cellar.ErrProductNotFound
	}
	return nil
}

func (ts *txStore) DeleteProduct(ctx context.Context, id int64) error {
	res, err := ts.tx.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cellar.ErrProductNotFound
	}
	return nil
}

func (ts *txStore) GetBooking(ctx context.Context, id int64) (*cellar.Booking, error) {
	return getBooking(ctx, ts.tx, id)
}

func (ts *txStore) InsertBooking(ctx context.Context, b *cellar.Booking) (int64, error) {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO bookings
		(product_id, direction, category, booking_date, quantity, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ProductID, string(b.Direction), b.Category, b.Date.Format(dateLayout),
		b.Quantity, b.Notes, b.CreatedBy,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	b.ID = id
	return id, nil
}

func (ts *txStore) UpdateBooking(ctx context.Context, b *cellar.Booking) error {
	res, err := ts.tx.ExecContext(ctx, `
		UPDATE bookings SET direction = ?, category = ?, booking_date = ?, quantity = ?, notes = ?
		WHERE id = ?
	`,
		string(b.Direction), b.Category, b.Date.Format(dateLayout), b.Quantity, b.Notes, b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cellar.ErrBookingNotFound
	}
	return nil
}

func (ts *txStore) DeleteBooking(ctx context.Context, id int64) error {
	res, err := ts.tx.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cellar.ErrBookingNotFound
	}
	return nil
}

func (ts *txStore) DeleteBookingsForProduct(ctx context.Context, productID int64) error {
	_, err := ts.tx.ExecContext(ctx, "DELETE FROM bookings WHERE product_id = ?", productID)
	if err != nil {
		return fmt.Errorf("failed to delete bookings for product: %w", err)
	}
	return nil
}

func (ts *txStore) SumSignedQuantity(ctx context.Context, productID int64) (int, error) {
	var sum int
	err := ts.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'inbound' THEN quantity ELSE -quantity END), 0)
		FROM bookings
		WHERE product_id = ?
	`, productID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum bookings: %w", err)
	}
	return sum, nil
}

// =============================================================================
// ROW HELPERS
// =============================================================================

const productColumns = `id, producer, varietal, vineyard, country, vintage, location,
	alcohol, sugar, acidity, info, order_link, notes,
	unit_price, quantity, total_value, created_at`

func getProduct(ctx context.Context, q querier, id int64) (*cellar.Product, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE id = ?
	`, id)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, cellar.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*cellar.Product, error) {
	var (
		p                     cellar.Product
		unitPrice, totalValue string
		createdAt             string
	)
	err := row.Scan(
		&p.ID, &p.Producer, &p.Varietal, &p.Vineyard, &p.Country, &p.Vintage, &p.Location,
		&p.Alcohol, &p.Sugar, &p.Acidity, &p.Info, &p.OrderLink, &p.Notes,
		&unitPrice, &p.Quantity, &totalValue, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if p.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("corrupt unit_price %q: %w", unitPrice, err)
	}
	if p.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return nil, fmt.Errorf("corrupt total_value %q: %w", totalValue, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func getBooking(ctx context.Context, q querier, id int64) (*cellar.Booking, error) {
	var (
		b               cellar.Booking
		date, createdAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, product_id, direction, category, booking_date, quantity, notes, created_by, created_at
		FROM bookings WHERE id = ?
	`, id).Scan(
		&b.ID, &b.ProductID, &b.Direction, &b.Category, &date,
		&b.Quantity, &b.Notes, &b.CreatedBy, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, cellar.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	b.Date, _ = time.Parse(dateLayout, date)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &b, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
