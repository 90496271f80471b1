package access

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/hierarchy"
)

func ptr(id int64) *int64 { return &id }

func emp(id int64, managerID *int64, department, position string) *domain.Employee {
	return &domain.Employee{
		ID:             id,
		ManagerID:      managerID,
		FirstName:      fmt.Sprintf("First%d", id),
		LastName:       fmt.Sprintf("Last%d", id),
		Email:          fmt.Sprintf("e%d@example.com", id),
		EmployeeNumber: fmt.Sprintf("EMP%03d", id),
		Department:     department,
		Position:       position,
		Salary:         decimal.NewFromInt(1000 * id),
		BirthDate:      time.Date(1990, 1, int(id), 0, 0, 0, 0, time.UTC),
	}
}

// 1 CEO (management)
// ├── 2 Head of Engineering
// │   ├── 4 Team Lead
// │   │   ├── 5 Software Engineer
// │   │   └── 6 Software Engineer
// │   └── 7 QA Engineer
// ├── 3 Head of Sales
// │   └── 8 Sales Representative
// └── 9 Head of HR (no reports)
func fixture() *hierarchy.Index {
	return hierarchy.New([]*domain.Employee{
		emp(1, nil, "management", "Chief Executive Officer"),
		emp(2, ptr(1), "engineering", "Head of Engineering"),
		emp(3, ptr(1), "sales", "Head of Sales"),
		emp(4, ptr(2), "engineering", "Team Lead"),
		emp(5, ptr(4), "engineering", "Software Engineer"),
		emp(6, ptr(4), "engineering", "Software Engineer"),
		emp(7, ptr(2), "engineering", "QA Engineer"),
		emp(8, ptr(3), "sales", "Sales Representative"),
		emp(9, ptr(1), "hr", "Head of HR"),
	})
}

var (
	admin     = Actor{EmployeeID: 1, Role: domain.RoleAdmin}
	engHead   = Actor{EmployeeID: 2, Role: domain.RoleManager}
	salesHead = Actor{EmployeeID: 3, Role: domain.RoleManager}
	teamLead  = Actor{EmployeeID: 4, Role: domain.RoleManager}
	engineer  = Actor{EmployeeID: 5, Role: domain.RoleEmployee}
	salesRep  = Actor{EmployeeID: 8, Role: domain.RoleEmployee}
)

func ids(es []*domain.Employee) []int64 {
	out := make([]int64, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func keys(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
