package wallet

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
	"github.com/Amandasamuel/Toll-with-postgress/internal/money"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler exposes wallet HTTP endpoints used by card readers.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type mutationRequest struct {
	CardUID string      `json:"card_uid" form:"card_uid" validate:"required"`
	Amount  json.Number `json:"amount" form:"amount" validate:"required"`
}

type transactionResponse struct {
	ID        int64         `json:"id"`
	Amount    int64         `json:"amount"`
	Type      ledger.TxType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
}

// TopUp credits the wallet behind a card.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	req, amount, err := parseMutation(c)
	if err != nil {
		return err
	}
	res, err := h.service.Credit(c.UserContext(), req.CardUID, amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(ResultBody(res))
}

// Debit charges the wallet behind a card. Declines are reported with 200 and a
// failed status so readers can show the reason at the gate.
func (h *Handler) Debit(c *fiber.Ctx) error {
	req, amount, err := parseMutation(c)
	if err != nil {
		return err
	}
	res, err := h.service.Debit(c.UserContext(), req.CardUID, amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(ResultBody(res))
}

// Balance returns the balance of the wallet behind a card.
func (h *Handler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), c.Params("card_uid"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"card_uid":  balance.CardUID,
		"balance":   balance.Amount,
		"timestamp": balance.AsOf,
	})
}

// Transactions lists the card owner's records, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return fiber.NewError(http.StatusBadRequest, "limit must not be negative")
	}
	history, err := h.service.History(c.UserContext(), c.Params("card_uid"), limit)
	if err != nil {
		return err
	}

	items := make([]transactionResponse, 0, history.Len())
	for t := range history.All() {
		items = append(items, transactionResponse{ID: t.ID, Amount: t.Amount, Type: t.Type, Timestamp: t.Timestamp})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": items})
}

// ResultBody renders a mutation result the way readers expect it.
func ResultBody(res ledger.Result) fiber.Map {
	if res.IsDeclined() {
		return fiber.Map{"status": res.Status, "reason": res.Reason}
	}
	return fiber.Map{"status": res.Status, "new_balance": res.NewBalance}
}

func parseMutation(c *fiber.Ctx) (mutationRequest, int64, error) {
	var req mutationRequest
	if err := c.BodyParser(&req); err != nil {
		return req, 0, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return req, 0, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := money.ParseAmount(req.Amount.String())
	if err != nil {
		return req, 0, err
	}
	return req, amount, nil
}
