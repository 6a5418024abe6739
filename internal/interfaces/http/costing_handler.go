package http

import (
	"github.com/gofiber/fiber/v2"

	appcosting "github.com/jhoicas/comex-api/internal/application/costing"
	"github.com/jhoicas/comex-api/internal/application/dto"
	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// CostingHandler maneja las sesiones de costeo de importación.
type CostingHandler struct {
	uc *appcosting.UseCase
}

// NewCostingHandler construye el handler.
func NewCostingHandler(uc *appcosting.UseCase) *CostingHandler {
	return &CostingHandler{uc: uc}
}

// CreateSession godoc
// @Summary      Abrir sesión de costeo
// @Tags         costing
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateCostingSessionRequest  true  "reference, exchange_rate, lines, recargos"
// @Success      201   {object}  dto.CostingSessionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/costing/sessions [post]
func (h *CostingHandler) CreateSession(c *fiber.Ctx) error {
	var in dto.CreateCostingSessionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	lines := make([]appcosting.LineInput, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, appcosting.LineInput{
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			SourcePrice: l.SourcePrice,
		})
	}
	s, err := h.uc.CreateSession(c.Context(), appcosting.CreateInput{
		Reference:        in.Reference,
		ExchangeRate:     in.ExchangeRate,
		TaxPct:           in.TaxPct,
		LogisticsPct:     in.LogisticsPct,
		StoragePct:       in.StoragePct,
		DeclarationPct:   in.DeclarationPct,
		CertificationPct: in.CertificationPct,
		MiscPct:          in.MiscPct,
		ContingencyPct:   in.ContingencyPct,
		CustomsTotal:     in.CustomsTotal,
		LoadingTotal:     in.LoadingTotal,
		ReturnsTotal:     in.ReturnsTotal,
		Lines:            lines,
		CreatedBy:        actor(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(s))
}

// Calculate godoc
// @Summary      Calcular desglose de costos
// @Description  Computa el desglose por línea y lo persiste, reemplazando el
//
//	cálculo anterior. Una sesión finalizada no se recalcula.
//
// @Tags         costing
// @Produce      json
// @Param        id   path      string  true  "ID de la sesión"
// @Success      200  {array}   dto.CostingSnapshotResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/costing/sessions/{id}/calculate [post]
func (h *CostingHandler) Calculate(c *fiber.Ctx) error {
	snaps, err := h.uc.Calculate(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toSnapshotResponses(snaps))
}

// Finalize godoc
// @Summary      Finalizar sesión y sembrar lotes
// @Description  Cierra la sesión (una sola vía) y crea un lote BONDED por
//
//	línea con el costo unitario calculado.
//
// @Tags         costing
// @Produce      json
// @Param        id   path      string  true  "ID de la sesión"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/costing/sessions/{id}/finalize [post]
func (h *CostingHandler) Finalize(c *fiber.Ctx) error {
	if err := h.uc.Finalize(c.Context(), c.Params("id"), actor(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "sesión finalizada"})
}

// GetSession godoc
// @Summary      Obtener sesión con su desglose
// @Tags         costing
// @Produce      json
// @Param        id   path      string  true  "ID de la sesión"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/costing/sessions/{id} [get]
func (h *CostingHandler) GetSession(c *fiber.Ctx) error {
	s, snaps, err := h.uc.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"session":   toSessionResponse(s),
		"breakdown": toSnapshotResponses(snaps),
	})
}

// ListSessions godoc
// @Summary      Listar sesiones de costeo
// @Tags         costing
// @Produce      json
// @Success      200  {array}  dto.CostingSessionResponse
// @Router       /api/costing/sessions [get]
func (h *CostingHandler) ListSessions(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	list, err := h.uc.ListSessions(c.Context(), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.CostingSessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionResponse(s))
	}
	return c.JSON(out)
}

func toSessionResponse(s *entity.CostingSession) dto.CostingSessionResponse {
	return dto.CostingSessionResponse{
		ID:           s.ID,
		Reference:    s.Reference,
		ExchangeRate: s.ExchangeRate,
		Finalized:    s.Finalized,
		FinalizedAt:  s.FinalizedAt,
		CreatedAt:    s.CreatedAt,
	}
}

func toSnapshotResponses(snaps []*entity.CostingItemSnapshot) []dto.CostingSnapshotResponse {
	out := make([]dto.CostingSnapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, dto.CostingSnapshotResponse{
			LineID:              s.LineID,
			ProductID:           s.ProductID,
			Quantity:            s.Quantity,
			LocalPrice:          s.LocalPrice,
			TaxAmount:           s.TaxAmount,
			LogisticsAmount:     s.LogisticsAmount,
			StorageAmount:       s.StorageAmount,
			DeclarationAmount:   s.DeclarationAmount,
			CertificationAmount: s.CertificationAmount,
			MiscAmount:          s.MiscAmount,
			ContingencyAmount:   s.ContingencyAmount,
			CustomsShare:        s.CustomsShare,
			LoadingShare:        s.LoadingShare,
			ReturnsShare:        s.ReturnsShare,
			TotalCost:           s.TotalCost,
			UnitCost:            s.UnitCost,
		})
	}
	return out
}
