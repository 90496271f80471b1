// Package orgchart 负责员工层级的查询与结构性变更。
//
// 每次请求都重新读取全部员工并在内存中建立索引，不在请求之间缓存层级结构。
// 所有写操作在事务内重新读取、重新校验后才写入。
package orgchart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/access"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/hierarchy"
)

type Filter struct {
	Department string
	Search     string
	ManagerID  *int64
}

type Page struct {
	Page  int
	Limit int
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

func (s *Service) snapshot(ctx context.Context) (*hierarchy.Index, error) {
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return hierarchy.New(employees), nil
}

// visible 返回 actor 可见的员工，按 id 升序
func (s *Service) visible(ctx context.Context, actor access.Actor) (*hierarchy.Index, []*domain.Employee, error) {
	idx, err := s.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	set, err := access.NewResolver(idx).VisibleSet(actor)
	if err != nil {
		return nil, nil, s.fail("resolve visibility", actor, err)
	}

	employees := make([]*domain.Employee, 0, len(set))
	for _, e := range idx.All() {
		if set[e.ID] {
			employees = append(employees, e)
		}
	}
	return idx, employees, nil
}

func (s *Service) ListEmployees(ctx context.Context, actor access.Actor, filter Filter, page Page) (domain.EmployeePage, error) {
	idx, employees, err := s.visible(ctx, actor)
	if err != nil {
		return domain.EmployeePage{}, err
	}

	matched := make([]*domain.Employee, 0, len(employees))
	for _, e := range employees {
		if filter.matches(e) {
			matched = append(matched, e)
		}
	}

	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = len(matched)
	}

	total := len(matched)
	totalPages := 0
	if page.Limit > 0 {
		totalPages = (total + page.Limit - 1) / page.Limit
	}

	start := min((page.Page-1)*page.Limit, total)
	end := min(start+page.Limit, total)

	resolver := access.NewResolver(idx)
	views := make([]domain.EmployeeView, 0, end-start)
	for _, e := range matched[start:end] {
		views = append(views, resolver.Redact(actor, e))
	}

	return domain.EmployeePage{
		Employees: views,
		Pagination: domain.Pagination{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      int64(total),
			TotalPages: totalPages,
		},
	}, nil
}

// VisibleEmployees 返回 actor 可见的全部员工，用于导出
func (s *Service) VisibleEmployees(ctx context.Context, actor access.Actor) ([]domain.EmployeeView, error) {
	idx, employees, err := s.visible(ctx, actor)
	if err != nil {
		return nil, err
	}

	resolver := access.NewResolver(idx)
	views := make([]domain.EmployeeView, 0, len(employees))
	for _, e := range employees {
		views = append(views, resolver.Redact(actor, e))
	}
	return views, nil
}

// GetEmployee 对不可见的员工与不存在的员工返回同样的错误
func (s *Service) GetEmployee(ctx context.Context, actor access.Actor, id int64) (domain.EmployeeView, error) {
	idx, err := s.snapshot(ctx)
	if err != nil {
		return domain.EmployeeView{}, err
	}

	resolver := access.NewResolver(idx)
	e, err := s.lookupVisible(resolver, idx, actor, id)
	if err != nil {
		return domain.EmployeeView{}, err
	}
	return resolver.Redact(actor, e), nil
}

func (s *Service) ManagerCandidates(ctx context.Context, actor access.Actor, department string) ([]domain.EmployeeView, error) {
	idx, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	resolver := access.NewResolver(idx)
	var candidates []*domain.Employee
	if department != "" {
		candidates, err = resolver.ManagersForDepartment(actor, department)
	} else {
		candidates, err = resolver.ManagerCandidates(actor)
	}
	if err != nil {
		return nil, s.fail("resolve manager candidates", actor, err)
	}

	return redactAll(resolver, actor, candidates), nil
}

// ManagersFor 返回可以作为 employeeID 上级的候选人，已排除其自身和全部下属
func (s *Service) ManagersFor(ctx context.Context, actor access.Actor, employeeID int64) ([]domain.EmployeeView, error) {
	idx, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	resolver := access.NewResolver(idx)
	if _, err := s.lookupVisible(resolver, idx, actor, employeeID); err != nil {
		return nil, err
	}

	candidates, err := resolver.ManagersFor(actor, employeeID)
	if err != nil {
		return nil, s.fail("resolve managers for employee", actor, err)
	}
	return redactAll(resolver, actor, candidates), nil
}

// Tree 导出完整的、未脱敏的层级结构。管理员得到所有根节点，经理只得到以自己为根的子树。
func (s *Service) Tree(ctx context.Context, actor access.Actor) ([]domain.TreeNode, error) {
	var rootIDs []int64

	idx, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case domain.RoleAdmin:
		// 只从根节点出发会漏掉与根断开的环，先校验整个快照
		if err := idx.Validate(); err != nil {
			return nil, s.fail("build tree", actor, err)
		}
		rootIDs = idx.Roots()
	case domain.RoleManager:
		if _, ok := idx.Get(actor.EmployeeID); !ok {
			return nil, apperror.NotFound("your employee record was not found")
		}
		rootIDs = []int64{actor.EmployeeID}
	default:
		return nil, apperror.Denied("Only administrators and managers can export the organization chart")
	}

	full := func(e *domain.Employee) domain.EmployeeView { return e.View(true) }
	trees := make([]domain.TreeNode, 0, len(rootIDs))
	for _, id := range rootIDs {
		tree, err := idx.Tree(id, full)
		if err != nil {
			return nil, s.fail("build tree", actor, err)
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

func (s *Service) DepartmentStats(ctx context.Context, actor access.Actor) ([]domain.DepartmentCount, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Denied("Only administrators can view department statistics")
	}

	counts, err := s.store.CountByDepartment(ctx)
	if err != nil {
		return nil, fmt.Errorf("count employees by department: %w", err)
	}
	return counts, nil
}

func (s *Service) lookupVisible(resolver *access.Resolver, idx *hierarchy.Index, actor access.Actor, id int64) (*domain.Employee, error) {
	set, err := resolver.VisibleSet(actor)
	if err != nil {
		return nil, s.fail("resolve visibility", actor, err)
	}

	e, ok := idx.Get(id)
	if !ok || !set[id] {
		return nil, apperror.Newf(apperror.KindNotFound, "Employee %d not found", id)
	}
	return e, nil
}

// fail 记录数据完整性错误，这类错误说明数据库中的层级已经损坏
func (s *Service) fail(op string, actor access.Actor, err error) error {
	if apperror.Is(err, apperror.KindIntegrity) {
		s.logger.Error("层级数据损坏", "op", op, "actor", actor.EmployeeID, "error", err)
	}
	return err
}

func (f Filter) matches(e *domain.Employee) bool {
	if f.Department != "" && e.Department != f.Department {
		return false
	}
	if f.ManagerID != nil && (e.ManagerID == nil || *e.ManagerID != *f.ManagerID) {
		return false
	}
	if f.Search == "" {
		return true
	}

	q := strings.ToLower(strings.TrimSpace(f.Search))
	for _, field := range []string{e.FullName(), e.Email, e.EmployeeNumber, e.Position, e.Department} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func redactAll(resolver *access.Resolver, actor access.Actor, employees []*domain.Employee) []domain.EmployeeView {
	views := make([]domain.EmployeeView, 0, len(employees))
	for _, e := range employees {
		views = append(views, resolver.Redact(actor, e))
	}
	return views
}
