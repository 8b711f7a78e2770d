package api

import (
	"context"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/schedule"
)

// ScheduleService is the part of *schedule.Service the HTTP layer uses.
type ScheduleService interface {
	ConfigureSchedule(ctx context.Context, doctorID uuid.UUID, p schedule.WorkPattern) (*schedule.WorkPattern, error)
	GetSchedule(ctx context.Context, doctorID uuid.UUID) (*schedule.WorkPattern, error)
	DeactivateSchedule(ctx context.Context, doctorID uuid.UUID) error
	ApplyTemplate(ctx context.Context, doctorID, templateID uuid.UUID) (*schedule.WorkPattern, error)

	CreateTemplate(ctx context.Context, t schedule.Template) (*schedule.Template, error)
	SaveScheduleAsTemplate(ctx context.Context, doctorID uuid.UUID, name, description string, isDefault bool) (*schedule.Template, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*schedule.Template, error)
	ListTemplates(ctx context.Context) ([]schedule.Template, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	AddException(ctx context.Context, doctorID uuid.UUID, e schedule.Exception) (*schedule.Exception, error)
	RemoveException(ctx context.Context, exceptionID uuid.UUID) error
	ListExceptions(ctx context.Context, doctorID uuid.UUID) ([]schedule.Exception, error)

	PreviewSlots(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]schedule.CandidateSlot, error)
	RegenerateSlots(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) (int, int, error)

	GetSlot(ctx context.Context, slotID uuid.UUID) (*schedule.Slot, error)
	ListAvailable(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]schedule.Slot, error)
	ListByRange(ctx context.Context, doctorID uuid.UUID, from, to civil.Date, statuses []schedule.SlotStatus) ([]schedule.Slot, error)
	Book(ctx context.Context, slotID, appointmentID uuid.UUID) (*schedule.Slot, error)
	Cancel(ctx context.Context, slotID uuid.UUID) (*schedule.Slot, error)
	Complete(ctx context.Context, slotID uuid.UUID) (*schedule.Slot, error)
	MarkNoShow(ctx context.Context, slotID uuid.UUID) (*schedule.Slot, error)
	ReopenSlot(ctx context.Context, slotID uuid.UUID) (*schedule.Slot, error)
}

var _ ScheduleService = (*schedule.Service)(nil)

type RouterConfig struct {
	Service ScheduleService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service

	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Put("/schedule", configureScheduleHandler(svc))
		r.Get("/schedule", getScheduleHandler(svc))
		r.Delete("/schedule", deactivateScheduleHandler(svc))
		r.Post("/schedule/apply-template/{templateID}", applyTemplateHandler(svc))
		r.Post("/schedule/templates", saveScheduleAsTemplateHandler(svc))

		r.Get("/exceptions", listExceptionsHandler(svc))
		r.Post("/exceptions", addExceptionHandler(svc))

		r.Get("/slots", listSlotsHandler(svc))
		r.Get("/slots/preview", previewSlotsHandler(svc))
		r.Post("/slots/regenerate", regenerateSlotsHandler(svc))
	})

	r.Delete("/exceptions/{exceptionID}", removeExceptionHandler(svc))

	r.Route("/slots/{slotID}", func(r chi.Router) {
		r.Get("/", getSlotHandler(svc))
		r.Post("/book", bookSlotHandler(svc))
		r.Post("/cancel", slotTransitionHandler(svc.Cancel))
		r.Post("/complete", slotTransitionHandler(svc.Complete))
		r.Post("/no-show", slotTransitionHandler(svc.MarkNoShow))
		r.Post("/reopen", slotTransitionHandler(svc.ReopenSlot))
	})

	r.Get("/templates", listTemplatesHandler(svc))
	r.Post("/templates", createTemplateHandler(svc))
	r.Get("/templates/{templateID}", getTemplateHandler(svc))
	r.Delete("/templates/{templateID}", deleteTemplateHandler(svc))

	return r
}
