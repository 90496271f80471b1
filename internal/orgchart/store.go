package orgchart

import (
	"context"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

// Store 是持久化层需要提供的能力
type Store interface {
	ListEmployees(ctx context.Context) ([]*domain.Employee, error)
	CountByDepartment(ctx context.Context) ([]domain.DepartmentCount, error)
	// RunInTx 在同一个事务中执行 fn，fn 返回错误时整体回滚
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx 中的所有写入要么全部生效，要么全部不生效
type Tx interface {
	ListEmployees(ctx context.Context) ([]*domain.Employee, error)
	CreateEmployee(ctx context.Context, e *domain.Employee) error
	UpdateEmployee(ctx context.Context, e *domain.Employee) error
	DeleteEmployee(ctx context.Context, id int64) error
	DetachSubordinates(ctx context.Context, managerID int64) error
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUserEmail(ctx context.Context, oldEmail, newEmail string) error
	DeleteUserByEmail(ctx context.Context, email string) error
}
