package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/application/usecase"
)

// EmployeeHandler gestión de empleados (protegido).
type EmployeeHandler struct {
	uc *usecase.EmployeeUseCase
}

// NewEmployeeHandler construye el handler.
func NewEmployeeHandler(uc *usecase.EmployeeUseCase) *EmployeeHandler {
	return &EmployeeHandler{uc: uc}
}

// Create godoc
// @Summary      Crear empleado
// @Tags         employees
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateEmployeeRequest  true  "Datos del empleado"
// @Success      201   {object}  dto.EmployeeResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/employees [post]
func (h *EmployeeHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateEmployeeRequest
	if err := c.BodyParser(&in); err != nil {
		return errInvalidBody
	}
	out, err := h.uc.Create(c.Context(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar empleados
// @Tags         employees
// @Security     Bearer
// @Produce      json
// @Param        department        query  string  false  "Departamento"
// @Param        role              query  string  false  "Rol"
// @Param        include_inactive  query  bool    false  "Incluir inactivos"
// @Param        limit             query  int     false  "Límite"
// @Param        offset            query  int     false  "Desplazamiento"
// @Success      200   {object}  dto.EmployeeListResponse
// @Router       /api/employees [get]
func (h *EmployeeHandler) List(c *fiber.Ctx) error {
	in := dto.EmployeeListRequest{
		PageRequest:     dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)},
		Department:      c.Query("department"),
		Role:            c.Query("role"),
		IncludeInactive: c.QueryBool("include_inactive", false),
	}
	out, err := h.uc.List(c.Context(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener empleado
// @Tags         employees
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del empleado"
// @Success      200  {object}  dto.EmployeeResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/employees/{id} [get]
func (h *EmployeeHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.Context(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Editar empleado
// @Description  Un cambio de rol o departamento notifica al empleado y programa el cierre de su sesión.
// @Tags         employees
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "ID del empleado"
// @Param        body  body  dto.UpdateEmployeeRequest  true  "Campos a modificar"
// @Success      200   {object}  dto.EmployeeResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/employees/{id} [put]
func (h *EmployeeHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateEmployeeRequest
	if err := c.BodyParser(&in); err != nil {
		return errInvalidBody
	}
	out, err := h.uc.Update(c.Context(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Eliminar empleado
// @Description  Baja lógica por defecto; hard=true borra el registro.
// @Tags         employees
// @Security     Bearer
// @Param        id    path   string  true   "ID del empleado"
// @Param        hard  query  bool    false  "Borrado físico"
// @Success      204
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/employees/{id} [delete]
func (h *EmployeeHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.Context(), GetActor(c), c.Params("id"), c.QueryBool("hard", false)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Supervisors godoc
// @Summary      Supervisores de un departamento
// @Tags         employees
// @Security     Bearer
// @Produce      json
// @Param        department  query  string  true  "Departamento"
// @Success      200   {array}   dto.EmployeeResponse
// @Router       /api/employees/supervisors [get]
func (h *EmployeeHandler) Supervisors(c *fiber.Ctx) error {
	out, err := h.uc.Supervisors(c.Context(), c.Query("department"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// RoleChanges godoc
// @Summary      Historial de cambios de rol
// @Tags         employees
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del empleado"
// @Success      200  {array}   dto.RoleChangeResponse
// @Router       /api/employees/{id}/role-changes [get]
func (h *EmployeeHandler) RoleChanges(c *fiber.Ctx) error {
	out, err := h.uc.RoleChanges(c.Context(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}
