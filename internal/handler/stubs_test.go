package handler

import (
	"context"
	"database/sql"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/access"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/orgchart"
)

// stubService 记录最近一次调用的参数，并返回预设的结果
type stubService struct {
	err      error
	page     domain.EmployeePage
	views    []domain.EmployeeView
	view     domain.EmployeeView
	trees    []domain.TreeNode
	stats    []domain.DepartmentCount
	employee *domain.Employee

	actor      access.Actor
	filter     orgchart.Filter
	pageReq    orgchart.Page
	id         int64
	managerID  int64
	department string
	createIn   orgchart.CreateEmployeeInput
	updateIn   orgchart.UpdateEmployeeInput
	newEmail   string
}

var _ EmployeeService = (*stubService)(nil)

func (s *stubService) ListEmployees(ctx context.Context, actor access.Actor, filter orgchart.Filter, page orgchart.Page) (domain.EmployeePage, error) {
	s.actor, s.filter, s.pageReq = actor, filter, page
	return s.page, s.err
}

func (s *stubService) VisibleEmployees(ctx context.Context, actor access.Actor) ([]domain.EmployeeView, error) {
	s.actor = actor
	return s.views, s.err
}

func (s *stubService) GetEmployee(ctx context.Context, actor access.Actor, id int64) (domain.EmployeeView, error) {
	s.actor, s.id = actor, id
	return s.view, s.err
}

func (s *stubService) ManagerCandidates(ctx context.Context, actor access.Actor, department string) ([]domain.EmployeeView, error) {
	s.actor, s.department = actor, department
	return s.views, s.err
}

func (s *stubService) ManagersFor(ctx context.Context, actor access.Actor, employeeID int64) ([]domain.EmployeeView, error) {
	s.actor, s.id = actor, employeeID
	return s.views, s.err
}

func (s *stubService) Tree(ctx context.Context, actor access.Actor) ([]domain.TreeNode, error) {
	s.actor = actor
	return s.trees, s.err
}

func (s *stubService) DepartmentStats(ctx context.Context, actor access.Actor) ([]domain.DepartmentCount, error) {
	s.actor = actor
	return s.stats, s.err
}

func (s *stubService) CreateEmployee(ctx context.Context, actor access.Actor, in orgchart.CreateEmployeeInput) (*domain.Employee, *domain.User, error) {
	s.actor, s.createIn = actor, in
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.employee, &domain.User{Email: in.Email, Role: domain.RoleEmployee, MustChangePassword: true}, nil
}

func (s *stubService) UpdateEmployee(ctx context.Context, actor access.Actor, id int64, in orgchart.UpdateEmployeeInput) (domain.EmployeeView, error) {
	s.actor, s.id, s.updateIn = actor, id, in
	return s.view, s.err
}

func (s *stubService) DeleteEmployee(ctx context.Context, actor access.Actor, id int64) error {
	s.actor, s.id = actor, id
	return s.err
}

func (s *stubService) ReassignManager(ctx context.Context, actor access.Actor, employeeID, managerID int64) (domain.EmployeeView, error) {
	s.actor, s.id, s.managerID = actor, employeeID, managerID
	return s.view, s.err
}

func (s *stubService) DetachEmployee(ctx context.Context, actor access.Actor, employeeID int64) (domain.EmployeeView, error) {
	s.actor, s.id = actor, employeeID
	return s.view, s.err
}

func (s *stubService) ChangeOwnEmail(ctx context.Context, actor access.Actor, newEmail string) (domain.EmployeeView, error) {
	s.actor, s.newEmail = actor, newEmail
	return s.view, s.err
}

type stubUsers struct {
	users     []*domain.User
	employees []*domain.Employee
	taken     map[string]bool
	updated   *domain.User
}

var _ UserRepository = (*stubUsers)(nil)

func (s *stubUsers) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUsers) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUsers) UpdateUser(ctx context.Context, user *domain.User) error {
	c := *user
	s.updated = &c
	return nil
}

func (s *stubUsers) CheckEmailIfExists(ctx context.Context, email string) (bool, error) {
	return s.taken[strings.ToLower(email)], nil
}

func (s *stubUsers) GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	for _, e := range s.employees {
		if strings.EqualFold(e.Email, email) {
			return e.Clone(), nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeMailer struct {
	published []amqp.Publishing
	err       error
}

func (m *fakeMailer) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, msg)
	return nil
}

type fakeOTPStore struct {
	values map[string]string
}

func (f *fakeOTPStore) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeOTPStore) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeOTPStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}
