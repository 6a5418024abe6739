package http

import (
	"github.com/gofiber/fiber/v2"

	appdelivery "github.com/jhoicas/comex-api/internal/application/delivery"
	"github.com/jhoicas/comex-api/internal/application/dto"
	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// DeliveryHandler maneja entregas de ítems de contrato.
type DeliveryHandler struct {
	uc *appdelivery.UseCase
}

// NewDeliveryHandler construye el handler.
func NewDeliveryHandler(uc *appdelivery.UseCase) *DeliveryHandler {
	return &DeliveryHandler{uc: uc}
}

// Deliver godoc
// @Summary      Entregar un ítem de contrato
// @Description  Consume FIFO del registro CLEARED, convirtiendo desde BONDED
//
//	si falta. Si el faltante no se cubre la entrega queda en
//	PENDING_CONVERSION y el worker la reintenta.
//
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "ID del contrato"
// @Param        body  body  dto.DeliverRequest  true  "item_id, quantity"
// @Success      201   {object}  dto.DeliveryResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/contracts/{id}/deliveries [post]
func (h *DeliveryHandler) Deliver(c *fiber.Ctx) error {
	var in dto.DeliverRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	d, err := h.uc.Deliver(c.Context(), c.Params("id"), in.ItemID, in.Quantity, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDeliveryResponse(d))
}

// Retry godoc
// @Summary      Reintentar una entrega pendiente de conversión
// @Tags         deliveries
// @Produce      json
// @Param        id   path      string  true  "ID de la entrega"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/deliveries/{id}/retry [post]
func (h *DeliveryHandler) Retry(c *fiber.Ctx) error {
	if err := h.uc.RetryPendingDelivery(c.Context(), c.Params("id"), actor(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "reintento ejecutado"})
}

// Cancel godoc
// @Summary      Cancelar una entrega
// @Description  Una entrega completada devuelve cada línea a su lote y
//
//	registro originales; una pendiente solo se borra.
//
// @Tags         deliveries
// @Produce      json
// @Param        id   path      string  true  "ID de la entrega"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/deliveries/{id} [delete]
func (h *DeliveryHandler) Cancel(c *fiber.Ctx) error {
	if err := h.uc.CancelDelivery(c.Context(), c.Params("id"), actor(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "entrega cancelada"})
}

func toDeliveryResponse(d *entity.ContractDelivery) dto.DeliveryResponse {
	return dto.DeliveryResponse{
		ID:              d.ID,
		ContractID:      d.ContractID,
		ContractItemID:  d.ContractItemID,
		Quantity:        d.Quantity,
		Status:          d.Status,
		MissingQuantity: d.MissingQuantity,
		RetryCount:      d.RetryCount,
		LastRetryAt:     d.LastRetryAt,
		CreatedAt:       d.CreatedAt,
	}
}
