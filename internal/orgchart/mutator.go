package orgchart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/access"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/hierarchy"
)

type CreateEmployeeInput struct {
	ManagerID      *int64
	FirstName      string
	LastName       string
	Email          string
	EmployeeNumber string
	Department     string
	Position       string
	Salary         decimal.Decimal
	BirthDate      time.Time
	ProfilePicture *string
	// 临时密码的哈希，新用户首次登录后必须修改密码
	PasswordHash string
}

type UpdateEmployeeInput struct {
	ManagerIDSet   bool
	ManagerID      *int64
	FirstName      *string
	LastName       *string
	Email          *string
	EmployeeNumber *string
	Department     *string
	Position       *string
	Salary         *decimal.Decimal
	BirthDate      *time.Time
	ProfilePicture *string
}

// inTx 在事务中读取最新的员工快照并建立索引，授权与写入都基于这份快照
func (s *Service) inTx(ctx context.Context, fn func(tx Tx, idx *hierarchy.Index) error) error {
	return s.store.RunInTx(ctx, func(tx Tx) error {
		employees, err := tx.ListEmployees(ctx)
		if err != nil {
			return fmt.Errorf("list employees: %w", err)
		}
		return fn(tx, hierarchy.New(employees))
	})
}

func (s *Service) CreateEmployee(ctx context.Context, actor access.Actor, in CreateEmployeeInput) (*domain.Employee, *domain.User, error) {
	var (
		employee *domain.Employee
		user     *domain.User
	)

	err := s.inTx(ctx, func(tx Tx, idx *hierarchy.Index) error {
		decision, err := access.NewAuthorizer(idx).AuthorizeCreate(actor, access.CreateRequest{
			ManagerID:      in.ManagerID,
			Department:     in.Department,
			Position:       in.Position,
			Email:          in.Email,
			EmployeeNumber: in.EmployeeNumber,
		})
		if err != nil {
			return err
		}

		employee = &domain.Employee{
			ManagerID:      in.ManagerID,
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			Email:          in.Email,
			EmployeeNumber: in.EmployeeNumber,
			Department:     in.Department,
			Position:       in.Position,
			Salary:         in.Salary,
			BirthDate:      in.BirthDate,
			ProfilePicture: in.ProfilePicture,
		}
		if err := tx.CreateEmployee(ctx, employee); err != nil {
			return fmt.Errorf("create employee: %w", err)
		}

		user = &domain.User{
			Email:              in.Email,
			PasswordHash:       in.PasswordHash,
			Role:               decision.Role,
			MustChangePassword: true,
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, s.fail("create employee", actor, err)
	}

	s.logger.Info("已创建员工", "actor", actor.EmployeeID, "employee", employee.ID, "role", user.Role)
	return employee, user, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, actor access.Actor, id int64, in UpdateEmployeeInput) (domain.EmployeeView, error) {
	var view domain.EmployeeView

	err := s.inTx(ctx, func(tx Tx, idx *hierarchy.Index) error {
		decision, err := access.NewAuthorizer(idx).AuthorizeUpdate(actor, id, access.UpdateRequest{
			ManagerIDSet:   in.ManagerIDSet,
			ManagerID:      in.ManagerID,
			Department:     in.Department,
			Position:       in.Position,
			Email:          in.Email,
			EmployeeNumber: in.EmployeeNumber,
		})
		if err != nil {
			return err
		}

		current, _ := idx.Get(id)
		updated := current.Clone()
		updated.ManagerID = decision.ManagerID
		updated.Department = decision.Department
		updated.Position = decision.Position
		in.applyTo(updated)

		// 用户与员工通过邮箱关联，先改用户再改员工，两者在同一事务中
		if decision.EmailChanged {
			if err := tx.UpdateUserEmail(ctx, current.Email, *in.Email); err != nil {
				return fmt.Errorf("update user email: %w", err)
			}
			updated.Email = *in.Email
		}

		if err := tx.UpdateEmployee(ctx, updated); err != nil {
			return fmt.Errorf("update employee: %w", err)
		}
		view = access.NewResolver(idx).Redact(actor, updated)
		return nil
	})
	if err != nil {
		return domain.EmployeeView{}, s.fail("update employee", actor, err)
	}

	s.logger.Info("已更新员工", "actor", actor.EmployeeID, "employee", id)
	return view, nil
}

func (s *Service) DeleteEmployee(ctx context.Context, actor access.Actor, id int64) error {
	err := s.inTx(ctx, func(tx Tx, idx *hierarchy.Index) error {
		if err := access.NewAuthorizer(idx).AuthorizeDelete(actor, id); err != nil {
			return err
		}

		target, _ := idx.Get(id)

		// 前面已经确认没有下属，这里仍然把可能残留的下属摘出来
		if err := tx.DetachSubordinates(ctx, id); err != nil {
			return fmt.Errorf("detach subordinates: %w", err)
		}
		if err := tx.DeleteEmployee(ctx, id); err != nil {
			return fmt.Errorf("delete employee: %w", err)
		}
		if err := tx.DeleteUserByEmail(ctx, target.Email); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.fail("delete employee", actor, err)
	}

	s.logger.Info("已删除员工", "actor", actor.EmployeeID, "employee", id)
	return nil
}

func (s *Service) ReassignManager(ctx context.Context, actor access.Actor, employeeID, managerID int64) (domain.EmployeeView, error) {
	var view domain.EmployeeView

	err := s.inTx(ctx, func(tx Tx, idx *hierarchy.Index) error {
		decision, err := access.NewAuthorizer(idx).AuthorizeReassign(actor, employeeID, managerID)
		if err != nil {
			return err
		}

		current, _ := idx.Get(employeeID)
		updated := current.Clone()
		updated.ManagerID = &managerID
		updated.Department = decision.Department
		updated.Position = decision.Position

		if err := tx.UpdateEmployee(ctx, updated); err != nil {
			return fmt.Errorf("update employee: %w", err)
		}
		view = access.NewResolver(idx).Redact(actor, updated)
		return nil
	})
	if err != nil {
		return domain.EmployeeView{}, s.fail("reassign manager", actor, err)
	}

	s.logger.Info("已调整上级", "actor", actor.EmployeeID, "employee", employeeID, "manager", managerID)
	return view, nil
}

func (s *Service) DetachEmployee(ctx context.Context, actor access.Actor, employeeID int64) (domain.EmployeeView, error) {
	var view domain.EmployeeView

	err := s.inTx(ctx, func(tx Tx, idx *hierarchy.Index) error {
		if err := access.NewAuthorizer(idx).AuthorizeDetach(actor, employeeID); err != nil {
			return err
		}

		current, _ := idx.Get(employeeID)
		updated := current.Clone()
		updated.ManagerID = nil
		updated.Department = domain.DepartmentUnassigned
		updated.Position = domain.PositionUnassigned

		if err := tx.UpdateEmployee(ctx, updated); err != nil {
			return fmt.Errorf("update employee: %w", err)
		}
		view = access.NewResolver(idx).Redact(actor, updated)
		return nil
	})
	if err != nil {
		return domain.EmployeeView{}, s.fail("detach employee", actor, err)
	}

	s.logger.Info("已摘除上级", "actor", actor.EmployeeID, "employee", employeeID)
	return view, nil
}

// ChangeOwnEmail 在验证码确认之后修改自己的邮箱，用户与员工记录同时更新
func (s *Service) ChangeOwnEmail(ctx context.Context, actor access.Actor, newEmail string) (domain.EmployeeView, error) {
	var view domain.EmployeeView
	newEmail = strings.TrimSpace(newEmail)

	err := s.inTx(ctx, func(tx Tx, idx *hierarchy.Index) error {
		self, err := access.NewAuthorizer(idx).AuthorizeEmailChange(actor, newEmail)
		if err != nil {
			return err
		}

		if err := tx.UpdateUserEmail(ctx, self.Email, newEmail); err != nil {
			return fmt.Errorf("update user email: %w", err)
		}

		updated := self.Clone()
		updated.Email = newEmail
		if err := tx.UpdateEmployee(ctx, updated); err != nil {
			return fmt.Errorf("update employee: %w", err)
		}
		view = access.NewResolver(idx).Redact(actor, updated)
		return nil
	})
	if err != nil {
		return domain.EmployeeView{}, s.fail("change own email", actor, err)
	}

	s.logger.Info("已修改邮箱", "actor", actor.EmployeeID)
	return view, nil
}

func (in UpdateEmployeeInput) applyTo(e *domain.Employee) {
	if in.FirstName != nil {
		e.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		e.LastName = *in.LastName
	}
	if in.EmployeeNumber != nil {
		e.EmployeeNumber = *in.EmployeeNumber
	}
	if in.Salary != nil {
		e.Salary = *in.Salary
	}
	if in.BirthDate != nil {
		e.BirthDate = *in.BirthDate
	}
	if in.ProfilePicture != nil {
		e.ProfilePicture = in.ProfilePicture
	}
}
