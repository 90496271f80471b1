package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/export"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/orgchart"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/utils"
)

// optionalID 区分请求中缺省的 managerId 和显式的 null
type optionalID struct {
	Set   bool
	Value *int64
}

func (o *optionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}

	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("managerId must be an integer or null")
	}
	o.Value = &id
	return nil
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := orgchart.Filter{
		Department: q.Get("department"),
		Search:     q.Get("search"),
	}
	if v := q.Get("managerId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.errorResponse(w, r, http.StatusBadRequest, "managerId must be an integer")
			return
		}
		filter.ManagerID = &id
	}

	page, err := h.readPage(q.Get("page"), q.Get("limit"))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.service.ListEmployees(r.Context(), actorFrom(r), filter, page)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, result)
}

func (h *Handler) readPage(pageParam, limitParam string) (orgchart.Page, error) {
	page := orgchart.Page{Page: 1, Limit: h.config.Pagination.DefaultLimit}

	if pageParam != "" {
		n, err := strconv.Atoi(pageParam)
		if err != nil || n < 1 {
			return page, fmt.Errorf("page must be a positive integer")
		}
		page.Page = n
	}
	if limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n < 1 {
			return page, fmt.Errorf("limit must be a positive integer")
		}
		page.Limit = n
	}
	if maxLimit := h.config.Pagination.MaxLimit; maxLimit > 0 && page.Limit > maxLimit {
		page.Limit = maxLimit
	}

	return page, nil
}

func (h *Handler) ExportEmployees(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	views, err := h.service.VisibleEmployees(r.Context(), actorFrom(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	// 先写入缓冲区，出错时还能返回正常的错误响应
	var buf bytes.Buffer
	if err := export.Write(&buf, format, views); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logInternalServerError(r, err)
	}
}

func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	trees, err := h.service.Tree(r.Context(), actorFrom(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{"roots": trees})
}

func (h *Handler) GetManagerCandidates(w http.ResponseWriter, r *http.Request) {
	managers, err := h.service.ManagerCandidates(r.Context(), actorFrom(r), r.URL.Query().Get("department"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{"managers": managers})
}

func (h *Handler) GetManagersForEmployee(w http.ResponseWriter, r *http.Request) {
	managers, err := h.service.ManagersFor(r.Context(), actorFrom(r), employeeIDFrom(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{"managers": managers})
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := h.service.GetEmployee(r.Context(), actorFrom(r), employeeIDFrom(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, employee)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName      string           `json:"firstName" validate:"required,max=100"`
		LastName       string           `json:"lastName" validate:"max=100"`
		Email          string           `json:"email" validate:"required,email"`
		EmployeeNumber string           `json:"employeeNumber" validate:"required,max=50"`
		Department     string           `json:"department" validate:"required,max=100"`
		Position       string           `json:"position" validate:"required,max=100"`
		Salary         *decimal.Decimal `json:"salary" validate:"required"`
		BirthDate      string           `json:"birthDate" validate:"required,datetime=2006-01-02"`
		ManagerID      *int64           `json:"managerId" validate:"omitempty,gt=0"`
		ProfilePicture *string          `json:"profilePicture" validate:"omitempty,url"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if req.Salary.IsNegative() {
		h.errorResponse(w, r, http.StatusBadRequest, "salary must not be negative")
		return
	}

	birthDate, err := domain.ParseBirthDate(req.BirthDate)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 生成随机的临时密码，首次登录后必须修改
	password := utils.GenerateRandomPassword(h.config.NewUser.PasswordLength)
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	employee, _, err := h.service.CreateEmployee(r.Context(), actorFrom(r), orgchart.CreateEmployeeInput{
		ManagerID:      req.ManagerID,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.TrimSpace(req.Email),
		EmployeeNumber: strings.TrimSpace(req.EmployeeNumber),
		Department:     strings.TrimSpace(req.Department),
		Position:       strings.TrimSpace(req.Position),
		Salary:         *req.Salary,
		BirthDate:      birthDate,
		ProfilePicture: req.ProfilePicture,
		PasswordHash:   string(hashedPassword),
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	mailMessage := domain.MailMessage{
		Type: domain.MailTypeNewEmployee,
		To:   employee.Email,
		Data: domain.NewEmployeeMailData{
			FullName: employee.FullName(),
			Email:    employee.Email,
			Password: password,
		},
	}

	// 员工已经创建成功，邮件投递失败只记录日志
	if err := h.publishMail(r.Context(), mailMessage); err != nil {
		h.logInternalServerError(r, fmt.Errorf("publish new employee mail: %w", err))
	}

	h.writeJSON(w, r, http.StatusCreated, employee.View(true))
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ManagerID      optionalID       `json:"managerId"`
		FirstName      *string          `json:"firstName" validate:"omitempty,min=1,max=100"`
		LastName       *string          `json:"lastName" validate:"omitempty,max=100"`
		Email          *string          `json:"email" validate:"omitempty,email"`
		EmployeeNumber *string          `json:"employeeNumber" validate:"omitempty,min=1,max=50"`
		Department     *string          `json:"department" validate:"omitempty,min=1,max=100"`
		Position       *string          `json:"position" validate:"omitempty,min=1,max=100"`
		Salary         *decimal.Decimal `json:"salary"`
		BirthDate      *string          `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
		ProfilePicture *string          `json:"profilePicture" validate:"omitempty,url"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if req.Salary != nil && req.Salary.IsNegative() {
		h.errorResponse(w, r, http.StatusBadRequest, "salary must not be negative")
		return
	}

	in := orgchart.UpdateEmployeeInput{
		ManagerIDSet:   req.ManagerID.Set,
		ManagerID:      req.ManagerID.Value,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		EmployeeNumber: req.EmployeeNumber,
		Department:     req.Department,
		Position:       req.Position,
		Salary:         req.Salary,
		ProfilePicture: req.ProfilePicture,
	}
	if req.BirthDate != nil {
		birthDate, err := domain.ParseBirthDate(*req.BirthDate)
		if err != nil {
			h.badRequest(w, r, err)
			return
		}
		in.BirthDate = &birthDate
	}

	employee, err := h.service.UpdateEmployee(r.Context(), actorFrom(r), employeeIDFrom(r), in)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, employee)
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEmployee(r.Context(), actorFrom(r), employeeIDFrom(r)); err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReassignManager(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ManagerID int64 `json:"managerId" validate:"required,gt=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	employee, err := h.service.ReassignManager(r.Context(), actorFrom(r), employeeIDFrom(r), req.ManagerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, employee)
}

func (h *Handler) DetachEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := h.service.DetachEmployee(r.Context(), actorFrom(r), employeeIDFrom(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, employee)
}

func (h *Handler) GetDepartmentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DepartmentStats(r.Context(), actorFrom(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{"departments": stats})
}
