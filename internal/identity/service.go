package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
	"github.com/Amandasamuel/Toll-with-postgress/internal/logging"
)

// Service enrolls cardholders and binds extra cards to them.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new identity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, logger: logger}
}

// Register creates a user with an empty wallet and binds the presented card.
func (s *Service) Register(ctx context.Context, reg Registration) (Enrollment, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Phone = strings.TrimSpace(reg.Phone)
	reg.CardUID = strings.TrimSpace(reg.CardUID)
	if reg.Name == "" || reg.Phone == "" || reg.CardUID == "" {
		return Enrollment{}, fmt.Errorf("%w: name, phone and card_uid are required", ledger.ErrInvalidInput)
	}

	enr, err := s.repo.Register(ctx, reg)
	if err != nil {
		return Enrollment{}, err
	}
	s.logger.Info("user registered", "user_id", enr.User.ID, logging.Card(reg.CardUID))
	return enr, nil
}

// LinkCard binds another card to an existing user's wallet.
func (s *Service) LinkCard(ctx context.Context, userID int64, cardUID string) (ledger.Card, error) {
	cardUID = strings.TrimSpace(cardUID)
	if userID <= 0 || cardUID == "" {
		return ledger.Card{}, fmt.Errorf("%w: user id and card_uid are required", ledger.ErrInvalidInput)
	}
	card, err := s.repo.LinkCard(ctx, userID, cardUID)
	if err != nil {
		return ledger.Card{}, err
	}
	s.logger.Info("card linked", "user_id", userID, logging.Card(cardUID))
	return card, nil
}
