package access

import (
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

// Actor 是当前请求的发起者，由认证中间件提供，这里不再校验
type Actor struct {
	EmployeeID int64
	Role       domain.Role
}

func (a Actor) IsAdmin() bool    { return a.Role == domain.RoleAdmin }
func (a Actor) IsManager() bool  { return a.Role == domain.RoleManager }
func (a Actor) IsEmployee() bool { return a.Role == domain.RoleEmployee }
