package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
)

// Repository persists users together with their wallet and cards.
type Repository interface {
	// Register creates the user, a zero-balance wallet and the first card atomically.
	Register(ctx context.Context, reg Registration) (Enrollment, error)
	LinkCard(ctx context.Context, userID int64, cardUID string) (ledger.Card, error)
}

type userRecord struct {
	ID        int64 `gorm:"primaryKey"`
	Name      string
	Phone     string
	CreatedAt time.Time
}

func (userRecord) TableName() string { return "users" }

type walletRecord struct {
	ID      int64 `gorm:"primaryKey"`
	UserID  int64
	Balance int64
}

func (walletRecord) TableName() string { return "wallets" }

type cardRecord struct {
	ID     int64  `gorm:"primaryKey"`
	UID    string `gorm:"column:uid"`
	UserID int64
}

func (cardRecord) TableName() string { return "cards" }

// GormRepository implements Repository with gorm on top of the shared Postgres pool.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Register(ctx context.Context, reg Registration) (Enrollment, error) {
	var out Enrollment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := userRecord{Name: reg.Name, Phone: reg.Phone}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		w := walletRecord{UserID: user.ID}
		if err := tx.Create(&w).Error; err != nil {
			return err
		}
		card := cardRecord{UID: reg.CardUID, UserID: user.ID}
		if err := tx.Create(&card).Error; err != nil {
			return err
		}

		out = Enrollment{
			User:     ledger.User{ID: user.ID, Name: user.Name, Phone: user.Phone, CreatedAt: user.CreatedAt},
			Card:     ledger.Card{ID: card.ID, UID: card.UID, UserID: card.UserID},
			WalletID: w.ID,
		}
		return nil
	})
	if err != nil {
		return Enrollment{}, translate("register", err)
	}
	return out, nil
}

func (r *GormRepository) LinkCard(ctx context.Context, userID int64, cardUID string) (ledger.Card, error) {
	var out ledger.Card
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user userRecord
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		card := cardRecord{UID: cardUID, UserID: user.ID}
		if err := tx.Create(&card).Error; err != nil {
			return err
		}
		out = ledger.Card{ID: card.ID, UID: card.UID, UserID: card.UserID}
		return nil
	})
	if err != nil {
		return ledger.Card{}, translate("link card", err)
	}
	return out, nil
}

const codeUniqueViolation = "23505"

func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ledger.ErrDuplicateCard
	case errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation:
		return ledger.ErrDuplicateCard
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrForeignKeyViolated):
		return ledger.ErrUserNotFound
	}
	return &ledger.StoreError{Op: op, Err: err}
}
