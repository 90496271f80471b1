package access

import (
	"fmt"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/hierarchy"
)

type Resolver struct {
	idx *hierarchy.Index
}

func NewResolver(idx *hierarchy.Index) *Resolver {
	return &Resolver{idx: idx}
}

// VisibleSet 计算 actor 在列表中能看到的员工集合
func (r *Resolver) VisibleSet(actor Actor) (map[int64]bool, error) {
	switch actor.Role {
	case domain.RoleAdmin:
		// 管理员能看到所有人，因此整个快照都必须是合法的森林
		if err := r.idx.Validate(); err != nil {
			return nil, err
		}
		set := make(map[int64]bool, r.idx.Len())
		for _, e := range r.idx.All() {
			set[e.ID] = true
		}
		return set, nil

	case domain.RoleManager:
		if err := r.requireSelf(actor); err != nil {
			return nil, err
		}
		return r.idx.Subtree(actor.EmployeeID)

	case domain.RoleEmployee:
		if err := r.requireSelf(actor); err != nil {
			return nil, err
		}
		ancestors, err := r.idx.Ancestors(actor.EmployeeID)
		if err != nil {
			return nil, err
		}

		set := map[int64]bool{actor.EmployeeID: true}
		for _, id := range r.idx.Siblings(actor.EmployeeID) {
			set[id] = true
		}
		for _, id := range ancestors {
			set[id] = true
		}
		return set, nil

	default:
		return nil, apperror.Denied(fmt.Sprintf("unknown role %q", actor.Role))
	}
}

// CanSeeSensitive 判断 actor 能否看到某条记录的薪资和生日。
// 经理只能看到自己和直接下属的完整记录，间接下属同样会被脱敏。
func (r *Resolver) CanSeeSensitive(actor Actor, record *domain.Employee) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleManager:
		if record.ID == actor.EmployeeID {
			return true
		}
		return record.ManagerID != nil && *record.ManagerID == actor.EmployeeID
	case domain.RoleEmployee:
		return record.ID == actor.EmployeeID
	default:
		return false
	}
}

func (r *Resolver) Redact(actor Actor, record *domain.Employee) domain.EmployeeView {
	return record.View(r.CanSeeSensitive(actor, record))
}

// ManagerCandidates 返回填写上级时可供选择的员工
func (r *Resolver) ManagerCandidates(actor Actor) ([]*domain.Employee, error) {
	candidates := make([]*domain.Employee, 0)

	switch actor.Role {
	case domain.RoleAdmin:
		for _, e := range r.idx.All() {
			// 被摘除上级的员工同样没有 managerId，只有 CEO 才算根节点
			isRoot := e.ManagerID == nil && IsChiefExecutiveTitle(e.Position)
			if isRoot || r.idx.HasChildren(e.ID) || IsManagerClassTitle(e.Position) {
				candidates = append(candidates, e)
			}
		}

	case domain.RoleManager:
		self, err := r.self(actor)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, self)

	case domain.RoleEmployee:
		// 普通员工只能看到 CEO 和各部门负责人，仅用于了解组织结构
		for _, rootID := range r.idx.Roots() {
			root, _ := r.idx.Get(rootID)
			if !IsChiefExecutiveTitle(root.Position) {
				continue
			}
			candidates = append(candidates, root)
			for _, childID := range r.idx.Children(rootID) {
				child, _ := r.idx.Get(childID)
				if IsManagerClassTitle(child.Position) {
					candidates = append(candidates, child)
				}
			}
		}

	default:
		return nil, apperror.Denied(fmt.Sprintf("unknown role %q", actor.Role))
	}

	return candidates, nil
}

// ManagersFor 在候选集合中排除 employeeID 及其全部下属，避免选出会成环的上级
func (r *Resolver) ManagersFor(actor Actor, employeeID int64) ([]*domain.Employee, error) {
	subtree, err := r.idx.Subtree(employeeID)
	if err != nil {
		return nil, err
	}

	candidates, err := r.ManagerCandidates(actor)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Employee, 0, len(candidates))
	for _, c := range candidates {
		if !subtree[c.ID] {
			result = append(result, c)
		}
	}
	return result, nil
}

// ManagersForDepartment 返回能够管理 department 部门员工的候选上级
func (r *Resolver) ManagersForDepartment(actor Actor, department string) ([]*domain.Employee, error) {
	candidates, err := r.ManagerCandidates(actor)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Employee, 0, len(candidates))
	for _, c := range candidates {
		if c.Department == department || c.Department == domain.DepartmentManagement {
			result = append(result, c)
		}
	}
	return result, nil
}

func (r *Resolver) requireSelf(actor Actor) error {
	_, err := r.self(actor)
	return err
}

func (r *Resolver) self(actor Actor) (*domain.Employee, error) {
	self, ok := r.idx.Get(actor.EmployeeID)
	if !ok {
		return nil, apperror.NotFound("your employee record was not found")
	}
	return self, nil
}
