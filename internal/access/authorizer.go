package access

import (
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/hierarchy"
)

// 被重新分配上级、原本处于未分配状态的员工使用的职位
const defaultPosition = "Staff"

type CreateRequest struct {
	ManagerID      *int64
	Department     string
	Position       string
	Email          string
	EmployeeNumber string
}

type CreateDecision struct {
	Role domain.Role
}

type UpdateRequest struct {
	ManagerIDSet   bool
	ManagerID      *int64
	Department     *string
	Position       *string
	Email          *string
	EmployeeNumber *string
}

// UpdateDecision 描述更新通过后员工的结构性字段
type UpdateDecision struct {
	ManagerID      *int64
	Department     string
	Position       string
	ManagerChanged bool
	EmailChanged   bool
}

type ReassignDecision struct {
	Department string
	Position   string
}

// Authorizer 对一次变更给出允许或拒绝的结论，本身不做任何写入
type Authorizer struct {
	idx *hierarchy.Index
}

func NewAuthorizer(idx *hierarchy.Index) *Authorizer {
	return &Authorizer{idx: idx}
}

func (a *Authorizer) AuthorizeCreate(actor Actor, req CreateRequest) (CreateDecision, error) {
	if err := requireKnownRole(actor); err != nil {
		return CreateDecision{}, err
	}
	if actor.IsEmployee() {
		return CreateDecision{}, apperror.Denied("Employees cannot create employee records")
	}

	var manager *domain.Employee
	if req.ManagerID != nil {
		m, ok := a.idx.Get(*req.ManagerID)
		if !ok {
			return CreateDecision{}, apperror.Newf(apperror.KindNotFound, "Manager %d not found", *req.ManagerID)
		}
		manager = m
	}

	// 同一部门只能有一个管理类员工
	if err := a.checkHeadUniqueness(0, req.Department, req.Position); err != nil {
		return CreateDecision{}, err
	}
	if manager != nil {
		if err := a.checkAlignment(0, req.Department, manager); err != nil {
			return CreateDecision{}, err
		}
	}

	switch actor.Role {
	case domain.RoleManager:
		self, ok := a.idx.Get(actor.EmployeeID)
		if !ok {
			return CreateDecision{}, apperror.NotFound("your employee record was not found")
		}
		if manager == nil || manager.ID != actor.EmployeeID {
			return CreateDecision{}, apperror.Denied("Managers can only assign employees to themselves")
		}
		if req.Department != self.Department {
			return CreateDecision{}, apperror.Denied("Managers can only create employees in their own department")
		}
	case domain.RoleAdmin:
		if manager != nil && manager.Department != domain.DepartmentManagement && manager.Department != req.Department {
			return CreateDecision{}, apperror.Newf(apperror.KindInvariant,
				"A manager from %s cannot manage employees in %s", manager.Department, req.Department)
		}
	}

	if manager == nil {
		if err := a.checkNewRoot(0, req.Position); err != nil {
			return CreateDecision{}, err
		}
	}

	if err := a.checkUniqueKeys(0, &req.Email, &req.EmployeeNumber); err != nil {
		return CreateDecision{}, err
	}

	return CreateDecision{Role: DefaultRole(req.Position)}, nil
}

func (a *Authorizer) AuthorizeUpdate(actor Actor, targetID int64, req UpdateRequest) (UpdateDecision, error) {
	if err := requireKnownRole(actor); err != nil {
		return UpdateDecision{}, err
	}
	if actor.IsEmployee() {
		return UpdateDecision{}, apperror.Denied("Employees cannot modify employee records")
	}

	target, ok := a.idx.Get(targetID)
	if !ok {
		return UpdateDecision{}, apperror.Newf(apperror.KindNotFound, "Employee %d not found", targetID)
	}

	if actor.IsManager() && targetID != actor.EmployeeID {
		below, err := a.idx.IsDescendant(actor.EmployeeID, targetID)
		if err != nil {
			return UpdateDecision{}, err
		}
		if !below {
			return UpdateDecision{}, apperror.Denied("Managers can only edit themselves or their subordinates")
		}
	}

	decision := UpdateDecision{
		ManagerID:  target.ManagerID,
		Department: target.Department,
		Position:   target.Position,
	}
	if req.Department != nil {
		decision.Department = *req.Department
	}
	if req.Position != nil {
		decision.Position = *req.Position
	}
	departmentChanged := decision.Department != target.Department

	switch {
	case req.ManagerIDSet && !sameID(req.ManagerID, target.ManagerID):
		decision.ManagerID = req.ManagerID
		decision.ManagerChanged = true

		if req.ManagerID == nil {
			if err := a.checkNewRoot(targetID, decision.Position); err != nil {
				return UpdateDecision{}, err
			}
			break
		}
		manager, err := a.checkManagerAssignment(targetID, *req.ManagerID)
		if err != nil {
			return UpdateDecision{}, err
		}
		if err := a.checkAlignment(targetID, decision.Department, manager); err != nil {
			return UpdateDecision{}, err
		}

	case departmentChanged:
		// 只改部门时自动挂到目标部门的负责人下，找不到负责人就整体拒绝
		head := a.departmentHead(decision.Department, targetID)
		if head == nil {
			return UpdateDecision{}, apperror.Newf(apperror.KindInvariant, "No manager exists for department %s", decision.Department)
		}
		if _, err := a.checkManagerAssignment(targetID, head.ID); err != nil {
			return UpdateDecision{}, err
		}
		if !sameID(&head.ID, target.ManagerID) {
			id := head.ID
			decision.ManagerID = &id
			decision.ManagerChanged = true
		}
	}

	if actor.IsManager() && decision.ManagerChanged {
		if err := a.checkManagerScope(actor, decision.ManagerID); err != nil {
			return UpdateDecision{}, err
		}
	}

	if err := a.checkHeadUniqueness(targetID, decision.Department, decision.Position); err != nil {
		return UpdateDecision{}, err
	}

	var email, number *string
	if req.Email != nil && !strings.EqualFold(*req.Email, target.Email) {
		email = req.Email
		decision.EmailChanged = true
	}
	if req.EmployeeNumber != nil && *req.EmployeeNumber != target.EmployeeNumber {
		number = req.EmployeeNumber
	}
	if err := a.checkUniqueKeys(targetID, email, number); err != nil {
		return UpdateDecision{}, err
	}

	return decision, nil
}

func (a *Authorizer) AuthorizeDelete(actor Actor, targetID int64) error {
	if err := requireKnownRole(actor); err != nil {
		return err
	}
	if actor.IsEmployee() {
		return apperror.Denied("Employees cannot delete employee records")
	}

	target, ok := a.idx.Get(targetID)
	if !ok {
		return apperror.Newf(apperror.KindNotFound, "Employee %d not found", targetID)
	}
	if targetID == actor.EmployeeID {
		return apperror.Denied("You cannot delete your own record")
	}

	if actor.IsManager() {
		below, err := a.idx.IsDescendant(actor.EmployeeID, targetID)
		if err != nil {
			return err
		}
		if !below {
			return apperror.Denied("Managers can only delete their own subordinates")
		}
	}

	if a.idx.HasChildren(targetID) {
		return apperror.Newf(apperror.KindInvariant,
			"%s still has subordinates; reassign or remove them first", target.FullName())
	}

	if target.ManagerID == nil && IsChiefExecutiveTitle(target.Position) {
		for _, e := range a.idx.All() {
			if e.ID != targetID && IsChiefExecutiveTitle(e.Position) {
				return nil
			}
		}
		return apperror.Invariant("The organization must always keep its CEO")
	}

	return nil
}

func (a *Authorizer) AuthorizeReassign(actor Actor, employeeID, managerID int64) (ReassignDecision, error) {
	if err := requireKnownRole(actor); err != nil {
		return ReassignDecision{}, err
	}
	if actor.IsEmployee() {
		return ReassignDecision{}, apperror.Denied("Employees cannot reassign managers")
	}

	target, ok := a.idx.Get(employeeID)
	if !ok {
		return ReassignDecision{}, apperror.Newf(apperror.KindNotFound, "Employee %d not found", employeeID)
	}
	manager, err := a.checkManagerAssignment(employeeID, managerID)
	if err != nil {
		return ReassignDecision{}, err
	}

	if actor.IsManager() {
		if err := a.checkSubtreeScope(actor, employeeID, "Managers can only reassign members of their own team"); err != nil {
			return ReassignDecision{}, err
		}
	}

	decision := ReassignDecision{
		Department: target.Department,
		Position:   target.Position,
	}
	if manager.Department != domain.DepartmentManagement && manager.Department != domain.DepartmentUnassigned {
		decision.Department = manager.Department
	}
	if decision.Position == domain.PositionUnassigned {
		decision.Position = defaultPosition
	}

	if err := a.checkAlignment(employeeID, decision.Department, manager); err != nil {
		return ReassignDecision{}, err
	}
	if err := a.checkHeadUniqueness(employeeID, decision.Department, decision.Position); err != nil {
		return ReassignDecision{}, err
	}

	return decision, nil
}

func (a *Authorizer) AuthorizeDetach(actor Actor, employeeID int64) error {
	if err := requireKnownRole(actor); err != nil {
		return err
	}
	if actor.IsEmployee() {
		return apperror.Denied("Employees cannot detach employees")
	}

	target, ok := a.idx.Get(employeeID)
	if !ok {
		return apperror.Newf(apperror.KindNotFound, "Employee %d not found", employeeID)
	}

	if actor.IsManager() {
		if err := a.checkSubtreeScope(actor, employeeID, "Managers can only detach members of their own team"); err != nil {
			return err
		}
	}

	if target.ManagerID == nil {
		return apperror.Newf(apperror.KindInvariant, "%s has no manager to detach from", target.FullName())
	}

	return nil
}

// checkManagerAssignment 校验把 employeeID 挂到 managerID 之下是否合法：不能自己管自己，上级必须存在，且不能成环
func (a *Authorizer) checkManagerAssignment(employeeID, managerID int64) (*domain.Employee, error) {
	if employeeID == managerID {
		return nil, apperror.Invariant("An employee cannot be their own manager")
	}

	manager, ok := a.idx.Get(managerID)
	if !ok {
		return nil, apperror.Newf(apperror.KindNotFound, "Manager %d not found", managerID)
	}

	below, err := a.idx.IsDescendant(employeeID, managerID)
	if err != nil {
		return nil, err
	}
	if below {
		return nil, apperror.Newf(apperror.KindInvariant,
			"%s reports to this employee; assigning them as manager would create a cycle", manager.FullName())
	}

	return manager, nil
}

// checkAlignment 上级是管理类职位时，目标部门若已有其他负责人，员工必须挂在该负责人下
func (a *Authorizer) checkAlignment(targetID int64, department string, manager *domain.Employee) error {
	if !IsManagerClassTitle(manager.Position) {
		return nil
	}

	head := a.departmentHead(department, targetID)
	if head != nil && head.ID != manager.ID {
		return apperror.Newf(apperror.KindInvariant,
			"Employees in %s must report to its manager %s", department, head.FullName())
	}
	return nil
}

func (a *Authorizer) checkHeadUniqueness(targetID int64, department, position string) error {
	if !IsManagerClassTitle(position) {
		return nil
	}

	if head := a.departmentHead(department, targetID); head != nil {
		return apperror.Newf(apperror.KindConflict,
			"Department %s already has a manager: %s", department, head.FullName())
	}
	return nil
}

// checkNewRoot 只有 CEO 可以没有上级，并且组织中只能有一个 CEO 根节点
func (a *Authorizer) checkNewRoot(targetID int64, position string) error {
	if !IsChiefExecutiveTitle(position) {
		return apperror.Invariant("Every employee except the CEO must have a manager")
	}

	for _, rootID := range a.idx.Roots() {
		root, _ := a.idx.Get(rootID)
		if rootID != targetID && IsChiefExecutiveTitle(root.Position) {
			return apperror.Newf(apperror.KindInvariant, "The organization already has a CEO: %s", root.FullName())
		}
	}
	return nil
}

func (a *Authorizer) checkManagerScope(actor Actor, managerID *int64) error {
	self, ok := a.idx.Get(actor.EmployeeID)
	if !ok {
		return apperror.NotFound("your employee record was not found")
	}

	if managerID != nil && (*managerID == actor.EmployeeID || sameID(managerID, self.ManagerID)) {
		return nil
	}
	return apperror.Denied("Managers can only assign employees to themselves or to their own manager")
}

func (a *Authorizer) checkSubtreeScope(actor Actor, employeeID int64, message string) error {
	if employeeID == actor.EmployeeID {
		return nil
	}

	below, err := a.idx.IsDescendant(actor.EmployeeID, employeeID)
	if err != nil {
		return err
	}
	if !below {
		return apperror.Denied(message)
	}
	return nil
}

func (a *Authorizer) checkUniqueKeys(targetID int64, email, employeeNumber *string) error {
	for _, e := range a.idx.All() {
		if e.ID == targetID {
			continue
		}
		if email != nil && strings.EqualFold(e.Email, *email) {
			return apperror.Newf(apperror.KindConflict, "Email %s is already in use", *email)
		}
		if employeeNumber != nil && e.EmployeeNumber == *employeeNumber {
			return apperror.Newf(apperror.KindConflict, "Employee number %s is already in use", *employeeNumber)
		}
	}
	return nil
}

// departmentHead 返回部门中除 excludeID 外的管理类员工
func (a *Authorizer) departmentHead(department string, excludeID int64) *domain.Employee {
	for _, e := range a.idx.All() {
		if e.ID != excludeID && e.Department == department && IsManagerClassTitle(e.Position) {
			return e
		}
	}
	return nil
}

func requireKnownRole(actor Actor) error {
	if !actor.Role.Valid() {
		return apperror.Denied(fmt.Sprintf("unknown role %q", actor.Role))
	}
	return nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AuthorizeEmailChange 用于自助修改邮箱，任何角色都只能修改自己的邮箱
func (a *Authorizer) AuthorizeEmailChange(actor Actor, newEmail string) (*domain.Employee, error) {
	if err := requireKnownRole(actor); err != nil {
		return nil, err
	}

	self, ok := a.idx.Get(actor.EmployeeID)
	if !ok {
		return nil, apperror.NotFound("your employee record was not found")
	}
	if strings.EqualFold(self.Email, newEmail) {
		return nil, apperror.Validation("The new email is the same as the current one")
	}
	if err := a.checkUniqueKeys(self.ID, &newEmail, nil); err != nil {
		return nil, err
	}

	return self, nil
}
