package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/orgchart"
)

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT email, password_hash, role, must_change_password, created_at, version
		FROM users WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	user := &domain.User{
		ID: id,
	}

	dst := []any{&user.Email, &user.PasswordHash, &user.Role, &user.MustChangePassword, &user.CreatedAt, &user.Version}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return user, nil
}

// GetUserByEmail 按邮箱查找用户，邮箱比较不区分大小写
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, role, must_change_password, created_at, version
		FROM users WHERE lower(email) = lower($1)
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	user := &domain.User{}

	dst := []any{&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.MustChangePassword, &user.CreatedAt, &user.Version}
	if err := r.db.QueryRowContext(ctx, query, email).Scan(dst...); err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateUser 更新密码和角色，使用 version 做乐观锁。邮箱只能通过 UpdateUserEmail 在事务中修改。
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET
			password_hash = $1,
			role = $2,
			must_change_password = $3,
			version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{user.PasswordHash, user.Role, user.MustChangePassword, user.ID, user.Version}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&user.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) CheckEmailIfExists(ctx context.Context, email string) (bool, error) {
	isExists := false

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))
	`
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&isExists); err != nil {
		return false, err
	}

	return isExists, nil
}

// EnsureInitialAdmin 在组织为空时创建 CEO 及其账号，已有员工时什么都不做
func (r *Repository) EnsureInitialAdmin(ctx context.Context, ceo *domain.Employee, user *domain.User) (bool, error) {
	created := false

	err := r.RunInTx(ctx, func(tx orgchart.Tx) error {
		employees, err := tx.ListEmployees(ctx)
		if err != nil {
			return err
		}
		if len(employees) > 0 {
			return nil
		}

		if err := tx.CreateEmployee(ctx, ceo); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}

		created = true
		return nil
	})

	return created, err
}

func (q *queries) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (email, password_hash, role, must_change_password)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, version
	`

	args := []any{user.Email, user.PasswordHash, user.Role, user.MustChangePassword}
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.CreatedAt, &user.Version); err != nil {
		return translateError(err)
	}

	return nil
}

// UpdateUserEmail 修改用户的登录邮箱，用户与员工通过邮箱关联，调用方需要在同一事务中同时修改员工记录
func (q *queries) UpdateUserEmail(ctx context.Context, oldEmail, newEmail string) error {
	query := `
		UPDATE users
		SET email = $1, version = version + 1
		WHERE lower(email) = lower($2)
		RETURNING id
	`

	var id int64
	if err := q.db.QueryRowContext(ctx, query, newEmail, oldEmail).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.Integrity("no user account is linked to email " + oldEmail)
		}
		return translateError(err)
	}

	return nil
}

func (q *queries) DeleteUserByEmail(ctx context.Context, email string) error {
	query := `
		DELETE FROM users WHERE lower(email) = lower($1)
	`

	if _, err := q.db.ExecContext(ctx, query, email); err != nil {
		return err
	}

	return nil
}
