package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/comex-api/internal/application/dto"
	"github.com/jhoicas/comex-api/internal/application/ledger"
)

// LedgerHandler maneja ingresos manuales, conversiones de registro y la
// reconciliación del ledger.
type LedgerHandler struct {
	uc *ledger.UseCase
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(uc *ledger.UseCase) *LedgerHandler {
	return &LedgerHandler{uc: uc}
}

// RegisterArrival godoc
// @Summary      Registrar ingreso manual de lote
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterArrivalRequest  true  "product_id, register, quantity, unit_cost"
// @Success      201   {object}  dto.BatchResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/ledger/arrivals [post]
func (h *LedgerHandler) RegisterArrival(c *fiber.Ctx) error {
	var in dto.RegisterArrivalRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	batch, err := h.uc.RegisterArrival(c.Context(), ledger.ArrivalInput{
		ProductID: in.ProductID,
		Register:  in.Register,
		Quantity:  in.Quantity,
		UnitCost:  in.UnitCost,
		Origin:    in.Origin,
		Reference: in.Reference,
		CreatedBy: actor(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.BatchResponse{
		ID:        batch.ID,
		ProductID: batch.ProductID,
		Register:  batch.Register,
		Quantity:  batch.Quantity,
		UnitCost:  batch.UnitCost,
		Origin:    batch.Origin,
		Reference: batch.Reference,
		Archived:  batch.Archived,
		CreatedAt: batch.CreatedAt,
	})
}

// ConvertRegister godoc
// @Summary      Convertir stock entre registros de custodia
// @Description  Mueve cantidad de un registro a otro preservando las capas de
//
//	costo. Si no hay suficiente en el origen, mueve lo disponible y
//	devuelve lo movido (conversión parcial).
//
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ConvertRegisterRequest  true  "product_id, from, to, quantity"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/ledger/conversions [post]
func (h *LedgerHandler) ConvertRegister(c *fiber.Ctx) error {
	var in dto.ConvertRegisterRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	moved, err := h.uc.ConvertRegister(c.Context(), in.ProductID, in.From, in.To, in.Quantity, in.Reference, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"requested": in.Quantity, "moved": moved})
}

// Reconcile godoc
// @Summary      Reconciliar lotes negativos
// @Description  Fija en cero los lotes con cantidad negativa y registra el
//
//	ajuste en la auditoría.
//
// @Tags         ledger
// @Produce      json
// @Success      200  {object}  map[string]int
// @Router       /api/ledger/reconcile [post]
func (h *LedgerHandler) Reconcile(c *fiber.Ctx) error {
	fixed, err := h.uc.Reconcile(c.Context(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"fixed": fixed})
}
