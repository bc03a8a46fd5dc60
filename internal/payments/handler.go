package payments

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Amandasamuel/Toll-with-postgress/internal/money"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	FromCard string      `json:"from_card" form:"from_card" validate:"required"`
	ToCard   string      `json:"to_card" form:"to_card" validate:"required"`
	Amount   json.Number `json:"amount" form:"amount" validate:"required"`
}

// Transfer moves funds between two cards.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Missing or invalid fields")
	}
	amount, err := money.ParseAmount(req.Amount.String())
	if err != nil {
		return err
	}

	conf, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromCardUID: req.FromCard,
		ToCardUID:   req.ToCard,
		Amount:      amount,
	})
	if err != nil {
		return err
	}

	if conf.IsDeclined() {
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": conf.Status, "reason": conf.Reason})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":       conf.Status,
		"message":      conf.Message,
		"reference":    conf.Reference,
		"amount":       conf.Amount,
		"from_card":    conf.FromCardUID,
		"to_card":      conf.ToCardUID,
		"from_balance": conf.FromBalance,
		"completed_at": conf.CompletedAt,
	})
}

// Receipt returns the records behind a transfer reference.
func (h *Handler) Receipt(c *fiber.Ctx) error {
	rec, err := h.service.Receipt(c.UserContext(), c.Params("reference"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"reference": rec.Reference,
		"amount":    rec.Amount,
		"debit":     rec.Debit,
		"credit":    rec.Credit,
	})
}
