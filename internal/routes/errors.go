package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
)

// ErrorHandler maps ledger errors onto HTTP statuses. Store failures are
// reported as retryable so readers know they may resend the same tap.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		case errors.Is(err, ledger.ErrInvalidInput):
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ledger.ErrNotFound):
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ledger.ErrDuplicateCard):
			return c.Status(http.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return c.Status(http.StatusOK).JSON(fiber.Map{
				"status": ledger.StatusDeclined,
				"reason": ledger.ReasonInsufficientBalance,
			})
		case errors.Is(err, ledger.ErrStoreFailure):
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
				"error":     "temporarily unavailable",
				"retryable": ledger.IsRetryable(err),
			})
		default:
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}
}
