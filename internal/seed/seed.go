// Package seed 负责初始管理员的创建以及开发环境的随机组织数据。
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/access"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/config"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/orgchart"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/utils"
)

// AdminStore 由 repository.Repository 实现
type AdminStore interface {
	EnsureInitialAdmin(ctx context.Context, ceo *domain.Employee, user *domain.User) (bool, error)
}

// InitialAdmin 确保组织中存在 CEO，返回值表示本次是否新建
func InitialAdmin(ctx context.Context, cfg *config.Config, store AdminStore) (bool, error) {
	ceo, err := initialAdminEmployee(cfg)
	if err != nil {
		return false, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	user := &domain.User{
		Email:        ceo.Email,
		PasswordHash: string(passwordHash),
		Role:         domain.RoleAdmin,
	}

	return store.EnsureInitialAdmin(ctx, ceo, user)
}

func initialAdminEmployee(cfg *config.Config) (*domain.Employee, error) {
	salary, err := decimal.NewFromString(cfg.InitialAdmin.Salary)
	if err != nil {
		return nil, fmt.Errorf("invalid initial admin salary: %w", err)
	}
	if salary.IsNegative() {
		return nil, errors.New("initial admin salary must not be negative")
	}

	birthDate, err := domain.ParseBirthDate(cfg.InitialAdmin.BirthDate)
	if err != nil {
		return nil, fmt.Errorf("invalid initial admin birth date: %w", err)
	}

	if !access.IsChiefExecutiveTitle(cfg.InitialAdmin.Position) {
		return nil, fmt.Errorf("initial admin position %q is not a chief executive title", cfg.InitialAdmin.Position)
	}

	return &domain.Employee{
		FirstName:      cfg.InitialAdmin.FirstName,
		LastName:       cfg.InitialAdmin.LastName,
		Email:          strings.TrimSpace(cfg.InitialAdmin.Email),
		EmployeeNumber: cfg.InitialAdmin.EmployeeNumber,
		Department:     domain.DepartmentManagement,
		Position:       cfg.InitialAdmin.Position,
		Salary:         salary,
		BirthDate:      birthDate,
	}, nil
}

// Creator 由 orgchart.Service 实现，随机数据同样经过授权和结构校验
type Creator interface {
	CreateEmployee(ctx context.Context, actor access.Actor, in orgchart.CreateEmployeeInput) (*domain.Employee, *domain.User, error)
}

type Options struct {
	Departments        []string
	StaffPerDepartment int
	Password           string
	EmailDomain        string
}

var staffPositions = []string{
	"Specialist", "Senior Specialist", "Associate", "Analyst", "Coordinator", "Engineer",
}

// Org 以 ceo 的身份为每个部门创建一名负责人，并在负责人之下创建若干员工。
// 单条记录创建失败时记录日志并继续，返回成功创建的数量。
func Org(ctx context.Context, creator Creator, ceo access.Actor, opts Options) (int, error) {
	if opts.StaffPerDepartment < 0 {
		return 0, errors.New("staff per department must not be negative")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	created := 0

	for _, department := range opts.Departments {
		department = strings.ToLower(strings.TrimSpace(department))
		if department == "" || department == domain.DepartmentManagement || department == domain.DepartmentUnassigned {
			continue
		}

		head, _, err := creator.CreateEmployee(ctx, ceo, randomEmployee(&ceo.EmployeeID, department, "Head of "+capitalize(department), 12000, 20000, opts, string(passwordHash), now))
		if err != nil {
			if apperror.Is(err, apperror.KindConflict) {
				slog.Warn("部门负责人已存在或信息冲突，跳过该部门", "department", department, "error", err)
				continue
			}
			return created, err
		}
		created++

		for i := 0; i < opts.StaffPerDepartment; i++ {
			position := staffPositions[rand.Intn(len(staffPositions))]
			in := randomEmployee(&head.ID, department, position, 5000, 12000, opts, string(passwordHash), now)
			if _, _, err := creator.CreateEmployee(ctx, ceo, in); err != nil {
				slog.Error("无法插入员工", "department", department, "error", err)
				continue
			}
			created++
		}
	}

	slog.Info("插入随机组织数据完成", "count", created)
	return created, nil
}

func randomEmployee(managerID *int64, department, position string, minSalary, maxSalary int64, opts Options, passwordHash string, now time.Time) orgchart.CreateEmployeeInput {
	surname, name := utils.GenerateRandomChineseName()
	id := *managerID

	return orgchart.CreateEmployeeInput{
		ManagerID:      &id,
		FirstName:      name,
		LastName:       surname,
		Email:          utils.GenerateEmailLocalPart(surname, name) + "@" + opts.EmailDomain,
		EmployeeNumber: fmt.Sprintf("E%06d", rand.Intn(1000000)),
		Department:     department,
		Position:       position,
		Salary:         utils.GenerateRandomSalary(minSalary, maxSalary),
		BirthDate:      utils.GenerateRandomBirthDate(now),
		PasswordHash:   passwordHash,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
