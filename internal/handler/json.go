package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
)

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, errorBody{Error: msg})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	h.errorResponse(w, r, http.StatusBadRequest, validationErrors[0].Translate(h.translator))
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	h.errorResponse(w, r, http.StatusUnauthorized, msg)
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.errorResponse(w, r, http.StatusInternalServerError, "Internal server error")
}

// serviceError 按错误类别选择状态码，数据损坏和未知错误只返回通用信息
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch kind := apperror.KindOf(err); kind {
	case apperror.KindValidation:
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
	case apperror.KindDenied:
		h.errorResponse(w, r, http.StatusForbidden, err.Error())
	case apperror.KindNotFound:
		h.errorResponse(w, r, http.StatusNotFound, err.Error())
	case apperror.KindConflict:
		h.errorResponse(w, r, http.StatusConflict, err.Error())
	case apperror.KindInvariant:
		h.errorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
	case apperror.KindIntegrity:
		h.logInternalServerError(r, err)
		h.errorResponse(w, r, http.StatusInternalServerError, "Organization data is inconsistent; please contact an administrator")
	default:
		h.internalServerError(w, r, err)
	}
}
