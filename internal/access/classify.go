package access

import (
	"strings"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

// 职位是自由文本，这里按子串判断是否为管理类职位。
// 这是一种启发式判断，职位名与结构角色混在一起，改名就可能改变分类结果。
var managerTitleMarkers = []string{"manager", "head of", "director", "chief executive"}

func IsManagerClassTitle(position string) bool {
	p := strings.ToLower(position)
	for _, marker := range managerTitleMarkers {
		if strings.Contains(p, marker) {
			return true
		}
	}
	return false
}

func IsChiefExecutiveTitle(position string) bool {
	return strings.Contains(strings.ToLower(position), "chief executive")
}

// DefaultRole 根据职位给新用户分配默认角色
func DefaultRole(position string) domain.Role {
	switch {
	case IsChiefExecutiveTitle(position):
		return domain.RoleAdmin
	case IsManagerClassTitle(position):
		return domain.RoleManager
	default:
		return domain.RoleEmployee
	}
}
