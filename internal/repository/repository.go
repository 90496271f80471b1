package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/config"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/orgchart"
)

// 所有结构性写操作共用的 advisory lock，保证层级变更串行执行
const hierarchyLockKey int64 = 0x6f7267

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries 中的方法既可以跑在连接池上，也可以跑在事务上
type queries struct {
	db dbtx
}

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
	*queries
}

var _ orgchart.Store = (*Repository)(nil)
var _ orgchart.Tx = (*queries)(nil)

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:     cfg,
		dbpool:  dbpool,
		queries: &queries{db: dbpool},
	}
}

func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

// RunInTx 先获取层级锁再执行 fn，fn 返回错误或者 panic 时事务回滚
func (r *Repository) RunInTx(ctx context.Context, fn func(tx orgchart.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, hierarchyLockKey); err != nil {
		return err
	}

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// translateError 把数据库约束错误转换为业务错误，其余错误原样返回
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case "employees_email_key", "users_email_key":
			return apperror.Conflict("Email is already in use")
		case "employees_employee_number_key":
			return apperror.Conflict("Employee number is already in use")
		default:
			return apperror.Conflict("Record already exists")
		}
	case "23503":
		return apperror.Invariant("Referenced manager does not exist")
	case "23514":
		if pgErr.ConstraintName == "employees_manager_not_self" {
			return apperror.Invariant("An employee cannot be their own manager")
		}
		return apperror.Validation("Record violates a database check: " + pgErr.ConstraintName)
	default:
		return err
	}
}
