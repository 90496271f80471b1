package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// CEO 所在部门，可以管理任何部门的员工
	DepartmentManagement = "management"
	// 被摘除上级后的部门和职位占位值
	DepartmentUnassigned = "unassigned"
	PositionUnassigned   = "unassigned"

	birthDateLayout = "2006-01-02"
)

type Employee struct {
	ID             int64
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
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (e *Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

func (e *Employee) Clone() *Employee {
	c := *e
	if e.ManagerID != nil {
		id := *e.ManagerID
		c.ManagerID = &id
	}
	if e.ProfilePicture != nil {
		p := *e.ProfilePicture
		c.ProfilePicture = &p
	}
	return &c
}

// EmployeeView 是返回给调用方的员工记录，Salary 和 BirthDate 为 nil 时不会出现在 JSON 中
type EmployeeView struct {
	ID             int64            `json:"id"`
	ManagerID      *int64           `json:"managerId"`
	FirstName      string           `json:"firstName"`
	LastName       string           `json:"lastName"`
	Email          string           `json:"email"`
	EmployeeNumber string           `json:"employeeNumber"`
	Department     string           `json:"department"`
	Position       string           `json:"position"`
	Salary         *decimal.Decimal `json:"salary,omitempty"`
	BirthDate      *string          `json:"birthDate,omitempty"`
	ProfilePicture *string          `json:"profilePicture"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func (e *Employee) View(full bool) EmployeeView {
	v := EmployeeView{
		ID:             e.ID,
		ManagerID:      e.ManagerID,
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		Email:          e.Email,
		EmployeeNumber: e.EmployeeNumber,
		Department:     e.Department,
		Position:       e.Position,
		ProfilePicture: e.ProfilePicture,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
	if full {
		salary := e.Salary
		birthDate := e.BirthDate.Format(birthDateLayout)
		v.Salary = &salary
		v.BirthDate = &birthDate
	}
	return v
}

// Redacted 报告该视图是否隐藏了敏感字段
func (v EmployeeView) Redacted() bool {
	return v.Salary == nil && v.BirthDate == nil
}

type TreeNode struct {
	Employee EmployeeView `json:"employee"`
	Children []TreeNode   `json:"children"`
}

type DepartmentCount struct {
	Department string `json:"department"`
	Count      int64  `json:"count"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type EmployeePage struct {
	Employees  []EmployeeView `json:"employees"`
	Pagination Pagination     `json:"pagination"`
}

func ParseBirthDate(s string) (time.Time, error) {
	return time.Parse(birthDateLayout, s)
}
