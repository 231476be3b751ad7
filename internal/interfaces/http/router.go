package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/produccion-api/internal/application/auth"
	"github.com/jhoicas/produccion-api/internal/application/usecase"
	"github.com/jhoicas/produccion-api/internal/domain/entity"
	"github.com/jhoicas/produccion-api/internal/infrastructure/sse"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC     *auth.AuthUseCase
	Sessions   *auth.SessionValidator
	EmployeeUC *usecase.EmployeeUseCase
	// Records un caso de uso por etapa; cada uno se monta en /api/<kind>.
	Records            []*usecase.RecordUseCase
	Hub                *sse.Hub
	LoginRatePerMinute int
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", LoginRateLimit(deps.LoginRatePerMinute), authHandler.Login)
	authGroup.Post("/logout", AuthMiddleware(deps.Sessions), authHandler.Logout)
	authGroup.Get("/me", AuthMiddleware(deps.Sessions), authHandler.Me)

	// Notificaciones en vivo (token por cabecera o query)
	eventsHandler := NewEventsHandler(deps.Hub)
	api.Get("/events", StreamAuthMiddleware(deps.Sessions), eventsHandler.Stream)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.Sessions))

	// Employees; las mutaciones son de RRHH o admin
	employees := protected.Group("/employees")
	employeeHandler := NewEmployeeHandler(deps.EmployeeUC)
	manage := RequireRole(entity.RoleHR, entity.RoleAdmin)
	employees.Get("/supervisors", employeeHandler.Supervisors)
	employees.Get("/", employeeHandler.List)
	employees.Post("/", manage, employeeHandler.Create)
	employees.Get("/:id", employeeHandler.GetByID)
	employees.Put("/:id", manage, employeeHandler.Update)
	employees.Delete("/:id", manage, employeeHandler.Delete)
	employees.Get("/:id/role-changes", employeeHandler.RoleChanges)

	// Registros de producción, uno por etapa
	for _, uc := range deps.Records {
		group := protected.Group("/" + string(uc.Kind()))
		h := NewRecordHandler(uc)
		group.Get("/summary", h.Summary)
		group.Post("/", h.Create)
		group.Get("/", h.List)
		group.Get("/:id", h.GetByID)
		group.Put("/:id", h.Update)
		group.Delete("/:id", h.Delete)
		group.Patch("/:id/approve", h.Approve)
	}
}
