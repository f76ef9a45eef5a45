package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finman-app/finman-server/cmd/models"
	"github.com/finman-app/finman-server/cmd/utils"
	"github.com/finman-app/finman-server/db"
	"github.com/gorilla/mux"
)

// MockStore implements Store for testing
type MockStore struct {
	ListByOwnerFunc func(ctx context.Context, userID uint) ([]models.Transaction, error)
	CreateFunc      func(ctx context.Context, transaction *models.Transaction) error
	UpdateFunc      func(ctx context.Context, id, userID uint, updates map[string]interface{}) (*models.Transaction, error)
	DeleteFunc      func(ctx context.Context, id, userID uint) error
}

func (m *MockStore) ListByOwner(ctx context.Context, userID uint) ([]models.Transaction, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockStore) Create(ctx context.Context, transaction *models.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, transaction)
	}
	return nil
}

func (m *MockStore) Update(ctx context.Context, id, userID uint, updates map[string]interface{}) (*models.Transaction, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, userID, updates)
	}
	return nil, nil
}

func (m *MockStore) Delete(ctx context.Context, id, userID uint) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, userID)
	}
	return nil
}

// authedRequest builds a request carrying the acting user in its context, the
// way the auth middleware would.
func authedRequest(method, target string, body []byte, userID uint) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestListTransactions(t *testing.T) {
	store := &MockStore{
		ListByOwnerFunc: func(ctx context.Context, userID uint) ([]models.Transaction, error) {
			if userID != 7 {
				t.Errorf("listed userID = %d, want 7", userID)
			}
			return []models.Transaction{{UserID: 7, Amount: 12.5, Kind: models.KindExpense, Category: "food"}}, nil
		},
	}
	handler := NewTransactionHandler(store, nil)

	rr := httptest.NewRecorder()
	handler.ListTransactions(rr, authedRequest(http.MethodGet, "/transactions", nil, 7))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var got []models.Transaction
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 || got[0].Category != "food" {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestCreateTransaction(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "Success",
			body:           `{"amount": 40, "kind": "expense", "category": "food", "description": "groceries", "date": "2025-06-01"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "MissingFields",
			body:           `{"amount": 40}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "BadKind",
			body:           `{"amount": 40, "kind": "transfer", "category": "food", "date": "2025-06-01"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "NegativeAmount",
			body:           `{"amount": -1, "kind": "expense", "category": "food", "date": "2025-06-01"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "BadDate",
			body:           `{"amount": 40, "kind": "expense", "category": "food", "date": "June 1st"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "NotJSON",
			body:           `amount=40`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var created *models.Transaction
			store := &MockStore{
				CreateFunc: func(ctx context.Context, transaction *models.Transaction) error {
					transaction.ID = 42
					created = transaction
					return nil
				},
			}
			handler := NewTransactionHandler(store, nil)

			rr := httptest.NewRecorder()
			handler.CreateTransaction(rr, authedRequest(http.MethodPost, "/transactions", []byte(tt.body), 7))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.expectedStatus != http.StatusCreated {
				if created != nil {
					t.Errorf("store was called for invalid input")
				}
				return
			}
			if created == nil {
				t.Fatal("store was not called")
			}
			if created.UserID != 7 {
				t.Errorf("owner = %d, want 7", created.UserID)
			}
			if created.Date != time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) {
				t.Errorf("date = %v, want 2025-06-01", created.Date)
			}
		})
	}
}

// The owner always comes from the token, even when the body tries to smuggle
// a user_id in.
func TestCreateTransactionIgnoresBodyOwner(t *testing.T) {
	var created *models.Transaction
	store := &MockStore{
		CreateFunc: func(ctx context.Context, transaction *models.Transaction) error {
			created = transaction
			return nil
		},
	}
	handler := NewTransactionHandler(store, nil)

	body := `{"amount": 5, "kind": "income", "category": "misc", "date": "2025-06-01", "user_id": 999}`
	rr := httptest.NewRecorder()
	handler.CreateTransaction(rr, authedRequest(http.MethodPost, "/transactions", []byte(body), 7))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusCreated)
	}
	if created.UserID != 7 {
		t.Errorf("owner = %d, want 7", created.UserID)
	}
}

func TestUpdateTransaction(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		body           string
		updateFunc     func(ctx context.Context, id, userID uint, updates map[string]interface{}) (*models.Transaction, error)
		expectedStatus int
	}{
		{
			name: "Success",
			id:   "3",
			body: `{"amount": 99}`,
			updateFunc: func(ctx context.Context, id, userID uint, updates map[string]interface{}) (*models.Transaction, error) {
				if id != 3 || userID != 7 {
					t.Errorf("update scoped to (%d, %d), want (3, 7)", id, userID)
				}
				if updates["amount"] != float64(99) {
					t.Errorf("updates = %v, want amount 99", updates)
				}
				return &models.Transaction{UserID: 7, Amount: 99}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "NotOwned",
			id:   "3",
			body: `{"amount": 99}`,
			updateFunc: func(ctx context.Context, id, userID uint, updates map[string]interface{}) (*models.Transaction, error) {
				return nil, db.ErrNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "BadID",
			id:             "abc",
			body:           `{"amount": 99}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "BadKind",
			id:             "3",
			body:           `{"kind": "transfer"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockStore{UpdateFunc: tt.updateFunc}
			handler := NewTransactionHandler(store, nil)

			req := authedRequest(http.MethodPut, "/transactions/"+tt.id, []byte(tt.body), 7)
			req = mux.SetURLVars(req, map[string]string{"id": tt.id})

			rr := httptest.NewRecorder()
			handler.UpdateTransaction(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
		})
	}
}

func TestDeleteTransaction(t *testing.T) {
	tests := []struct {
		name           string
		deleteErr      error
		expectedStatus int
	}{
		{"Success", nil, http.StatusOK},
		{"AlreadyGone", db.ErrNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockStore{
				DeleteFunc: func(ctx context.Context, id, userID uint) error {
					if id != 3 || userID != 7 {
						t.Errorf("delete scoped to (%d, %d), want (3, 7)", id, userID)
					}
					return tt.deleteErr
				},
			}
			handler := NewTransactionHandler(store, nil)

			req := authedRequest(http.MethodDelete, "/transactions/3", nil, 7)
			req = mux.SetURLVars(req, map[string]string{"id": "3"})

			rr := httptest.NewRecorder()
			handler.DeleteTransaction(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	handler := NewTransactionHandler(&MockStore{}, nil)

	rr := httptest.NewRecorder()
	handler.ListTransactions(rr, httptest.NewRequest(http.MethodGet, "/transactions", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
