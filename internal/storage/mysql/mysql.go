package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"shopfloor/internal/config"
	"shopfloor/internal/storage"
)

type Storage struct {
	db *sql.DB
}

var (
	_ storage.Store = (*Storage)(nil)
	_ storage.Tx    = (*conn)(nil)
)

// queryer — общее у *sql.DB и *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn реализует storage.Tx поверх транзакции (InTx) или пула (View).
type conn struct {
	q queryer
	// locking: внутри транзакции берем FOR UPDATE, во View блокировки не нужны
	locking bool
}

func New(cfg config.Config) (*Storage, error) {
	const op = "storage.mysql.New"

	dsn := mysql.NewConfig()
	dsn.User = cfg.DBUser
	dsn.Passwd = cfg.DBPassword
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort))
	dsn.DBName = cfg.DBName
	dsn.ParseTime = cfg.ParseTime

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// NewWithDB оборачивает уже открытое соединение (тесты).
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// InTx выполняет fn в транзакции read committed. Конкурентные переходы
// сериализуются блокировками строк заказа и ресурса (SELECT ... FOR UPDATE).
func (s *Storage) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	const op = "storage.mysql.InTx"

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	if err := fn(&conn{q: tx, locking: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *Storage) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	return fn(&conn{q: s.db})
}

func (c *conn) forUpdate() string {
	if c.locking {
		return " FOR UPDATE"
	}
	return ""
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return err
}

func (c *conn) LockProductionOrder(ctx context.Context, id int64) error {
	const op = "storage.mysql.LockProductionOrder"

	var locked int64
	err := c.q.QueryRowContext(ctx, `SELECT id FROM production_orders WHERE id = ?`+c.forUpdate(), id).Scan(&locked)
	if err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err, fmt.Sprintf("production order %d", id)))
	}
	return nil
}

func (c *conn) LockResource(ctx context.Context, ref storage.ResourceRef) error {
	const op = "storage.mysql.LockResource"

	table, err := resourceTable(ref.Kind)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var locked int64
	err = c.q.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE id = ?`+c.forUpdate(), ref.ID).Scan(&locked)
	if err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err, "resource "+ref.String()))
	}
	return nil
}
