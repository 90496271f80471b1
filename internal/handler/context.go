package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/access"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

type ContextKey string

var (
	ActorCtxKey   ContextKey = "actor"
	SubCtxKey     ContextKey = "sub"
	MyInfoCtx     ContextKey = "myInfo"
	EmployeeIDCtx ContextKey = "employeeID"
)

func actorFrom(r *http.Request) access.Actor {
	return r.Context().Value(ActorCtxKey).(access.Actor)
}

func myInfoFrom(r *http.Request) *domain.User {
	return r.Context().Value(MyInfoCtx).(*domain.User)
}

func employeeIDFrom(r *http.Request) int64 {
	return r.Context().Value(EmployeeIDCtx).(int64)
}
