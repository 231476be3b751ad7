package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/produccion-api/internal/application/dto"
	"github.com/jhoicas/produccion-api/internal/application/usecase"
)

// RecordHandler rutas de una etapa de producción; se monta una vez por etapa
// (/api/fermentation, /api/extraction, /api/packaging).
type RecordHandler struct {
	uc *usecase.RecordUseCase
}

// NewRecordHandler construye el handler.
func NewRecordHandler(uc *usecase.RecordUseCase) *RecordHandler {
	return &RecordHandler{uc: uc}
}

// Create godoc
// @Summary      Crear registro de producción
// @Tags         records
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        kind  path  string             true  "fermentation | extraction | packaging"
// @Param        body  body  dto.RecordRequest  true  "Campos de dominio"
// @Success      201   {object}  dto.RecordResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/{kind} [post]
func (h *RecordHandler) Create(c *fiber.Ctx) error {
	var in dto.RecordRequest
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
// @Summary      Listar registros visibles
// @Description  Un operador ve sus registros (y en fermentation/extraction los legados sin creador).
// @Tags         records
// @Security     Bearer
// @Produce      json
// @Param        kind      path   string  true   "fermentation | extraction | packaging"
// @Param        status    query  string  false  "pending | approved"
// @Param        plant     query  string  false  "Planta"
// @Param        campaign  query  string  false  "Campaña"
// @Param        from      query  string  false  "Desde (AAAA-MM-DD)"
// @Param        to        query  string  false  "Hasta (AAAA-MM-DD)"
// @Param        limit     query  int     false  "Límite"
// @Param        offset    query  int     false  "Desplazamiento"
// @Success      200   {object}  dto.RecordListResponse
// @Router       /api/{kind} [get]
func (h *RecordHandler) List(c *fiber.Ctx) error {
	in := dto.RecordListRequest{
		PageRequest: dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)},
		Status:      c.Query("status"),
		Plant:       c.Query("plant"),
		Campaign:    c.Query("campaign"),
		From:        c.Query("from"),
		To:          c.Query("to"),
	}
	out, err := h.uc.List(c.Context(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Summary godoc
// @Summary      Conteo por estado
// @Tags         records
// @Security     Bearer
// @Produce      json
// @Param        kind  path  string  true  "fermentation | extraction | packaging"
// @Success      200   {object}  dto.RecordSummaryResponse
// @Router       /api/{kind}/summary [get]
func (h *RecordHandler) Summary(c *fiber.Ctx) error {
	out, err := h.uc.Summary(c.Context(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener registro
// @Tags         records
// @Security     Bearer
// @Produce      json
// @Param        kind  path  string  true  "fermentation | extraction | packaging"
// @Param        id    path  string  true  "ID del registro"
// @Success      200   {object}  dto.RecordResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/{kind}/{id} [get]
func (h *RecordHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.Context(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Editar registro
// @Tags         records
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        kind  path  string             true  "fermentation | extraction | packaging"
// @Param        id    path  string             true  "ID del registro"
// @Param        body  body  dto.RecordRequest  true  "Campos de dominio"
// @Success      200   {object}  dto.RecordResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/{kind}/{id} [put]
func (h *RecordHandler) Update(c *fiber.Ctx) error {
	var in dto.RecordRequest
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
// @Summary      Eliminar registro
// @Tags         records
// @Security     Bearer
// @Param        kind  path  string  true  "fermentation | extraction | packaging"
// @Param        id    path  string  true  "ID del registro"
// @Success      204
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/{kind}/{id} [delete]
func (h *RecordHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.Context(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Approve godoc
// @Summary      Aprobar registro
// @Description  Idempotente: aprobar un registro ya aprobado responde 200 sin cambios.
// @Tags         records
// @Security     Bearer
// @Produce      json
// @Param        kind  path  string  true  "fermentation | extraction | packaging"
// @Param        id    path  string  true  "ID del registro"
// @Success      200   {object}  dto.RecordResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/{kind}/{id}/approve [patch]
func (h *RecordHandler) Approve(c *fiber.Ctx) error {
	out, err := h.uc.Approve(c.Context(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}
