package orgchart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/access"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

var errInjected = errors.New("injected failure")

// memStore 是测试用的内存存储，事务在副本上执行，成功后整体替换
type memStore struct {
	mu        sync.Mutex
	state     memState
	failOn    string
	committed int
}

type memState struct {
	employees map[int64]*domain.Employee
	users     map[int64]*domain.User
	nextEmp   int64
	nextUser  int64
}

type memTx struct {
	state  memState
	failOn string
}

var _ Store = (*memStore)(nil)
var _ Tx = (*memTx)(nil)

func newMemStore(employees []*domain.Employee, roles map[int64]domain.Role) *memStore {
	s := &memStore{state: memState{
		employees: make(map[int64]*domain.Employee),
		users:     make(map[int64]*domain.User),
	}}
	for _, e := range employees {
		s.state.employees[e.ID] = e.Clone()
		if e.ID > s.state.nextEmp {
			s.state.nextEmp = e.ID
		}

		s.state.nextUser++
		s.state.users[s.state.nextUser] = &domain.User{
			ID:    s.state.nextUser,
			Email: e.Email,
			Role:  roles[e.ID],
		}
	}
	return s
}

func (s memState) clone() memState {
	c := memState{
		employees: make(map[int64]*domain.Employee, len(s.employees)),
		users:     make(map[int64]*domain.User, len(s.users)),
		nextEmp:   s.nextEmp,
		nextUser:  s.nextUser,
	}
	for id, e := range s.employees {
		c.employees[id] = e.Clone()
	}
	for id, u := range s.users {
		user := *u
		c.users[id] = &user
	}
	return c
}

func (s memState) list() []*domain.Employee {
	result := make([]*domain.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		result = append(result, e.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *memStore) ListEmployees(ctx context.Context) ([]*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.list(), nil
}

func (s *memStore) CountByDepartment(ctx context.Context) ([]domain.DepartmentCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int64)
	for _, e := range s.state.employees {
		counts[e.Department]++
	}
	result := make([]domain.DepartmentCount, 0, len(counts))
	for dept, n := range counts {
		result = append(result, domain.DepartmentCount{Department: dept, Count: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Department < result[j].Department })
	return result, nil
}

func (s *memStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone(), failOn: s.failOn}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	s.committed++
	return nil
}

func (s *memStore) employee(id int64) (*domain.Employee, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.employees[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (s *memStore) userByEmail(email string) (*domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.state.users {
		if strings.EqualFold(u.Email, email) {
			user := *u
			return &user, true
		}
	}
	return nil, false
}

func (tx *memTx) fail(op string) error {
	if tx.failOn == op {
		return fmt.Errorf("%s: %w", op, errInjected)
	}
	return nil
}

func (tx *memTx) ListEmployees(ctx context.Context) ([]*domain.Employee, error) {
	if err := tx.fail("ListEmployees"); err != nil {
		return nil, err
	}
	return tx.state.list(), nil
}

func (tx *memTx) CreateEmployee(ctx context.Context, e *domain.Employee) error {
	if err := tx.fail("CreateEmployee"); err != nil {
		return err
	}
	tx.state.nextEmp++
	e.ID = tx.state.nextEmp
	tx.state.employees[e.ID] = e.Clone()
	return nil
}

func (tx *memTx) UpdateEmployee(ctx context.Context, e *domain.Employee) error {
	if err := tx.fail("UpdateEmployee"); err != nil {
		return err
	}
	if _, ok := tx.state.employees[e.ID]; !ok {
		return fmt.Errorf("employee %d does not exist", e.ID)
	}
	tx.state.employees[e.ID] = e.Clone()
	return nil
}

func (tx *memTx) DeleteEmployee(ctx context.Context, id int64) error {
	if err := tx.fail("DeleteEmployee"); err != nil {
		return err
	}
	delete(tx.state.employees, id)
	return nil
}

func (tx *memTx) DetachSubordinates(ctx context.Context, managerID int64) error {
	if err := tx.fail("DetachSubordinates"); err != nil {
		return err
	}
	for _, e := range tx.state.employees {
		if e.ManagerID != nil && *e.ManagerID == managerID {
			e.ManagerID = nil
			e.Department = domain.DepartmentUnassigned
			e.Position = domain.PositionUnassigned
		}
	}
	return nil
}

func (tx *memTx) CreateUser(ctx context.Context, u *domain.User) error {
	if err := tx.fail("CreateUser"); err != nil {
		return err
	}
	tx.state.nextUser++
	u.ID = tx.state.nextUser
	user := *u
	tx.state.users[u.ID] = &user
	return nil
}

func (tx *memTx) UpdateUserEmail(ctx context.Context, oldEmail, newEmail string) error {
	if err := tx.fail("UpdateUserEmail"); err != nil {
		return err
	}
	for _, u := range tx.state.users {
		if strings.EqualFold(u.Email, oldEmail) {
			u.Email = newEmail
			return nil
		}
	}
	return fmt.Errorf("user %s does not exist", oldEmail)
}

func (tx *memTx) DeleteUserByEmail(ctx context.Context, email string) error {
	if err := tx.fail("DeleteUserByEmail"); err != nil {
		return err
	}
	for id, u := range tx.state.users {
		if strings.EqualFold(u.Email, email) {
			delete(tx.state.users, id)
		}
	}
	return nil
}

// 1 CEO
// ├── 2 Head of Engineering
// │   ├── 4 Software Engineer
// │   └── 5 Software Engineer
// └── 3 Head of Sales
//     └── 6 Sales Representative
func orgFixture() ([]*domain.Employee, map[int64]domain.Role) {
	employees := []*domain.Employee{
		fixtureEmployee(1, nil, "Ada", "Chief Executive Officer", domain.DepartmentManagement),
		fixtureEmployee(2, ptr(1), "Grace", "Head of Engineering", "engineering"),
		fixtureEmployee(3, ptr(1), "Linus", "Head of Sales", "sales"),
		fixtureEmployee(4, ptr(2), "Ken", "Software Engineer", "engineering"),
		fixtureEmployee(5, ptr(2), "Rob", "Software Engineer", "engineering"),
		fixtureEmployee(6, ptr(3), "Dana", "Sales Representative", "sales"),
	}
	roles := map[int64]domain.Role{
		1: domain.RoleAdmin,
		2: domain.RoleManager,
		3: domain.RoleManager,
		4: domain.RoleEmployee,
		5: domain.RoleEmployee,
		6: domain.RoleEmployee,
	}
	return employees, roles
}

func fixtureEmployee(id int64, managerID *int64, name, position, department string) *domain.Employee {
	return &domain.Employee{
		ID:             id,
		ManagerID:      managerID,
		FirstName:      name,
		LastName:       "Test",
		Email:          strings.ToLower(name) + "@example.com",
		EmployeeNumber: fmt.Sprintf("E%03d", id),
		Department:     department,
		Position:       position,
		Salary:         decimal.NewFromInt(1000 * id),
		BirthDate:      time.Date(1990, time.January, int(id), 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore(orgFixture())
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

var (
	ceo      = access.Actor{EmployeeID: 1, Role: domain.RoleAdmin}
	engHead  = access.Actor{EmployeeID: 2, Role: domain.RoleManager}
	salesMgr = access.Actor{EmployeeID: 3, Role: domain.RoleManager}
	engineer = access.Actor{EmployeeID: 4, Role: domain.RoleEmployee}
)

func ptr(v int64) *int64 {
	return &v
}

func str(v string) *string {
	return &v
}

func viewIDs(views []domain.EmployeeView) []int64 {
	ids := make([]int64, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}
