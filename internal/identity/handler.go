package identity

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Name    string `json:"name" form:"name" validate:"required"`
	Phone   string `json:"phone" form:"phone" validate:"required"`
	CardUID string `json:"card_uid" form:"card_uid" validate:"required"`
}

type linkCardRequest struct {
	CardUID string `json:"card_uid" form:"card_uid" validate:"required"`
}

// Register handles cardholder onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Missing fields")
	}
	enr, err := h.service.Register(c.UserContext(), Registration{Name: req.Name, Phone: req.Phone, CardUID: req.CardUID})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"status":   "registered",
		"user_id":  enr.User.ID,
		"card_uid": enr.Card.UID,
	})
}

// LinkCard binds an additional card to a user.
func (h *Handler) LinkCard(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid user id")
	}
	var req linkCardRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Missing fields")
	}
	card, err := h.service.LinkCard(c.UserContext(), int64(userID), req.CardUID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"card_id":  card.ID,
		"card_uid": card.UID,
		"user_id":  card.UserID,
	})
}
