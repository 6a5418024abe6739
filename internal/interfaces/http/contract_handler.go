package http

import (
	"github.com/gofiber/fiber/v2"

	appcontract "github.com/jhoicas/comex-api/internal/application/contract"
	"github.com/jhoicas/comex-api/internal/application/dto"
	"github.com/jhoicas/comex-api/internal/application/lifecycle"
	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// ContractHandler maneja la creación y el ciclo de vida de contratos.
type ContractHandler struct {
	contracts *appcontract.UseCase
	lifecycle *lifecycle.UseCase
}

// NewContractHandler construye el handler.
func NewContractHandler(contracts *appcontract.UseCase, lc *lifecycle.UseCase) *ContractHandler {
	return &ContractHandler{contracts: contracts, lifecycle: lc}
}

// Create godoc
// @Summary      Crear contrato con reserva de stock
// @Description  Crea el contrato con sus ítems y reserva el stock de los ítems
//
//	catalogados en una sola transacción.
//
// @Tags         contracts
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateContractRequest  true  "number, type, items"
// @Success      201   {object}  dto.ContractResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/contracts [post]
func (h *ContractHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateContractRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	items := make([]appcontract.ItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, appcontract.ItemInput{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	created, err := h.contracts.Create(c.Context(), appcontract.CreateInput{
		Number:       in.Number,
		Counterparty: in.Counterparty,
		Type:         in.Type,
		LimitAmount:  in.LimitAmount,
		Items:        items,
		CreatedBy:    actor(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toContractResponse(created))
}

// GetByID godoc
// @Summary      Obtener contrato con sus ítems
// @Tags         contracts
// @Produce      json
// @Param        id   path      string  true  "ID del contrato"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/contracts/{id} [get]
func (h *ContractHandler) GetByID(c *fiber.Ctx) error {
	contract, items, err := h.contracts.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"contract": toContractResponse(contract),
		"items":    items,
	})
}

// List godoc
// @Summary      Listar contratos
// @Tags         contracts
// @Produce      json
// @Success      200  {array}  dto.ContractResponse
// @Router       /api/contracts [get]
func (h *ContractHandler) List(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	list, err := h.contracts.List(c.Context(), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.ContractResponse, 0, len(list))
	for _, contract := range list {
		out = append(out, toContractResponse(contract))
	}
	return c.JSON(out)
}

// RegisterPayment godoc
// @Summary      Registrar abono
// @Tags         contracts
// @Accept       json
// @Produce      json
// @Param        id    path  string                      true  "ID del contrato"
// @Param        body  body  dto.RegisterPaymentRequest  true  "amount, method, notes"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/contracts/{id}/payments [post]
func (h *ContractHandler) RegisterPayment(c *fiber.Ctx) error {
	var in dto.RegisterPaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	err := h.lifecycle.RegisterPayment(c.Context(), lifecycle.PaymentInput{
		ContractID: c.Params("id"),
		Amount:     in.Amount,
		Method:     in.Method,
		Notes:      in.Notes,
		CreatedBy:  actor(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "abono registrado"})
}

// Close godoc
// @Summary      Cerrar contrato
// @Description  Exige pagado, entregado y despachado completos, y que todos
//
//	los lotes entregados estén en el registro CLEARED.
//
// @Tags         contracts
// @Produce      json
// @Param        id   path      string  true  "ID del contrato"
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/contracts/{id}/close [post]
func (h *ContractHandler) Close(c *fiber.Ctx) error {
	if err := h.lifecycle.Close(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": entity.ContractStatusClosed})
}

// Cancel godoc
// @Summary      Cancelar contrato
// @Description  Devuelve todas las reservas a sus lotes originales. Repetir la
//
//	cancelación es un no-op.
//
// @Tags         contracts
// @Produce      json
// @Param        id   path      string  true  "ID del contrato"
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/contracts/{id}/cancel [post]
func (h *ContractHandler) Cancel(c *fiber.Ctx) error {
	if err := h.lifecycle.Cancel(c.Context(), c.Params("id"), actor(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": entity.ContractStatusCancelled})
}

// Recompute godoc
// @Summary      Rederivar estado del contrato
// @Tags         contracts
// @Produce      json
// @Param        id   path      string  true  "ID del contrato"
// @Success      200  {object}  map[string]string
// @Router       /api/contracts/{id}/recompute [post]
func (h *ContractHandler) Recompute(c *fiber.Ctx) error {
	status, err := h.lifecycle.Recompute(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": status})
}

func toContractResponse(c *entity.Contract) dto.ContractResponse {
	return dto.ContractResponse{
		ID:                  c.ID,
		Number:              c.Number,
		Counterparty:        c.Counterparty,
		Type:                c.Type,
		LimitAmount:         c.LimitAmount,
		TotalAmount:         c.TotalAmount,
		PaidAmount:          c.PaidAmount,
		ShippedAmount:       c.ShippedAmount,
		TotalItemsCount:     c.TotalItemsCount,
		DeliveredItemsCount: c.DeliveredItemsCount,
		Status:              c.Status,
		CreatedAt:           c.CreatedAt,
	}
}
