package handler

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/access"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/config"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/orgchart"
)

// EmployeeService 由 orgchart.Service 实现
type EmployeeService interface {
	ListEmployees(ctx context.Context, actor access.Actor, filter orgchart.Filter, page orgchart.Page) (domain.EmployeePage, error)
	VisibleEmployees(ctx context.Context, actor access.Actor) ([]domain.EmployeeView, error)
	GetEmployee(ctx context.Context, actor access.Actor, id int64) (domain.EmployeeView, error)
	ManagerCandidates(ctx context.Context, actor access.Actor, department string) ([]domain.EmployeeView, error)
	ManagersFor(ctx context.Context, actor access.Actor, employeeID int64) ([]domain.EmployeeView, error)
	Tree(ctx context.Context, actor access.Actor) ([]domain.TreeNode, error)
	DepartmentStats(ctx context.Context, actor access.Actor) ([]domain.DepartmentCount, error)
	CreateEmployee(ctx context.Context, actor access.Actor, in orgchart.CreateEmployeeInput) (*domain.Employee, *domain.User, error)
	UpdateEmployee(ctx context.Context, actor access.Actor, id int64, in orgchart.UpdateEmployeeInput) (domain.EmployeeView, error)
	DeleteEmployee(ctx context.Context, actor access.Actor, id int64) error
	ReassignManager(ctx context.Context, actor access.Actor, employeeID, managerID int64) (domain.EmployeeView, error)
	DetachEmployee(ctx context.Context, actor access.Actor, employeeID int64) (domain.EmployeeView, error)
	ChangeOwnEmail(ctx context.Context, actor access.Actor, newEmail string) (domain.EmployeeView, error)
}

// UserRepository 由 repository.Repository 实现
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	CheckEmailIfExists(ctx context.Context, email string) (bool, error)
	GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error)
}

// MailPublisher 由 *amqp.Channel 实现
type MailPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// OTPStore 由 *redis.Client 实现
type OTPStore interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	service     EmployeeService
	users       UserRepository
	translator  ut.Translator
	mailChannel MailPublisher
	otpStore    OTPStore

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, svc EmployeeService, users UserRepository, mailCh MailPublisher, otpStore OTPStore) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// 校验错误信息中使用 json 字段名
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		service:     svc,
		users:       users,
		translator:  trans,
		mailChannel: mailCh,
		otpStore:    otpStore,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Get("/healthcheck", h.Healthcheck)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Route("/update-email", func(r chi.Router) {
				r.Post("/require", h.RequireUpdateEmail)
				r.Post("/confirm", h.ConfirmUpdateEmail)
			})
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin, domain.RoleManager})).Post("/", h.CreateEmployee)
			r.Get("/export", h.ExportEmployees)
			r.Get("/tree", h.GetTree)
			r.Get("/managers", h.GetManagerCandidates)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.employeeID)
				r.Get("/", h.GetEmployee)
				r.Patch("/", h.UpdateEmployee)
				r.Delete("/", h.DeleteEmployee)
				r.Get("/managers", h.GetManagersForEmployee)
				r.Put("/manager", h.ReassignManager)
				r.Delete("/manager", h.DetachEmployee)
			})
		})

		r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Get("/departments/stats", h.GetDepartmentStats)
	})
}
