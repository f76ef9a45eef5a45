package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/finman-app/finman-server/cmd/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no record matches the (id, owner) pair. A record
// owned by a different user is indistinguishable from a missing one.
var ErrNotFound = errors.New("record not found")

// TransactionStore persists transaction records. Every query carries the owning
// user ID as a mandatory predicate; there is no unscoped read or write path.
type TransactionStore struct {
	db *gorm.DB
}

func NewTransactionStore(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// ListByOwner returns all records owned by userID, newest date first. Equal
// dates fall back to creation order so the ordering is stable across calls.
func (s *TransactionStore) ListByOwner(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var transactions []models.Transaction
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC, id ASC").
		Find(&transactions)
	if result.Error != nil {
		return nil, fmt.Errorf("list transactions for user %d: %w", userID, result.Error)
	}
	return transactions, nil
}

func (s *TransactionStore) Create(ctx context.Context, transaction *models.Transaction) error {
	if err := s.db.WithContext(ctx).Create(transaction).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// Update applies the given column updates to the record matching id and userID
// in a single statement, then reloads it. Returns ErrNotFound when nothing
// matched, whether the record is missing or owned by someone else.
func (s *TransactionStore) Update(ctx context.Context, id, userID uint, updates map[string]interface{}) (*models.Transaction, error) {
	if len(updates) > 0 {
		result := s.db.WithContext(ctx).
			Model(&models.Transaction{}).
			Where("id = ? AND user_id = ?", id, userID).
			Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("update transaction %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	var transaction models.Transaction
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&transaction)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reload transaction %d: %w", id, result.Error)
	}
	return &transaction, nil
}

// Delete removes the record matching id and userID. Deleting a record that is
// already gone (or never was the caller's) returns ErrNotFound.
func (s *TransactionStore) Delete(ctx context.Context, id, userID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Transaction{})
	if result.Error != nil {
		return fmt.Errorf("delete transaction %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
