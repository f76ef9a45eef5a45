package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/finman-app/finman-server/cmd/models"
	"github.com/finman-app/finman-server/cmd/utils"
	"github.com/finman-app/finman-server/db"
	"github.com/finman-app/finman-server/service/events"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
)

// Store is the persistence surface the handler needs. Every operation is
// scoped to the owning user; there is no way to reach another user's records.
type Store interface {
	ListByOwner(ctx context.Context, userID uint) ([]models.Transaction, error)
	Create(ctx context.Context, transaction *models.Transaction) error
	Update(ctx context.Context, id, userID uint, updates map[string]interface{}) (*models.Transaction, error)
	Delete(ctx context.Context, id, userID uint) error
}

type TransactionHandler struct {
	store Store
	hub   *events.Hub
}

func NewTransactionHandler(store Store, hub *events.Hub) *TransactionHandler {
	return &TransactionHandler{store: store, hub: hub}
}

// RegisterRoutes registers transaction-related routes with Gorilla Mux
func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	transactionRouter := router.PathPrefix("/transactions").Subrouter()

	transactionRouter.HandleFunc("", utils.AuthMiddleware(h.ListTransactions)).Methods("GET")
	transactionRouter.HandleFunc("", utils.AuthMiddleware(h.CreateTransaction)).Methods("POST")
	transactionRouter.HandleFunc("/{id}", utils.AuthMiddleware(h.UpdateTransaction)).Methods("PUT")
	transactionRouter.HandleFunc("/{id}", utils.AuthMiddleware(h.DeleteTransaction)).Methods("DELETE")
}

// TransactionRequest carries the client-supplied fields for create and update.
// Pointers distinguish "absent" from "zero" so updates can be partial. The
// owner is never read from the body; it always comes from the token.
type TransactionRequest struct {
	Amount      *float64 `json:"amount"`
	Kind        *string  `json:"kind"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"`
	Tags        []string `json:"tags"`
}

// parseDate accepts the date-only form used by the web client and full
// RFC 3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ListTransactions returns all records owned by the caller, newest date first.
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	transactions, err := h.store.ListByOwner(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing transactions for user %d: %v", userID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "persistence error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, transactions)
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Required fields for a new record
	if req.Amount == nil || req.Kind == nil || req.Category == nil || req.Date == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "amount, kind, category and date are required")
		return
	}
	if *req.Amount < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}
	if !models.ValidKind(*req.Kind) {
		utils.RespondWithError(w, http.StatusBadRequest, "kind must be income or expense")
		return
	}
	date, err := parseDate(*req.Date)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or RFC 3339")
		return
	}

	transaction := models.Transaction{
		UserID:   userID,
		Amount:   *req.Amount,
		Kind:     *req.Kind,
		Category: *req.Category,
		Date:     date,
		Tags:     pq.StringArray(req.Tags),
	}
	if req.Description != nil {
		transaction.Description = *req.Description
	}

	if err := h.store.Create(r.Context(), &transaction); err != nil {
		log.Printf("Error creating transaction for user %d: %v", userID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "persistence error")
		return
	}

	if h.hub != nil {
		h.hub.Publish(userID, events.Event{Type: events.TransactionCreated, Transaction: &transaction})
	}

	utils.RespondWithJSON(w, http.StatusCreated, transaction)
}

func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := parseTransactionID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updates := map[string]interface{}{}
	if req.Amount != nil {
		if *req.Amount < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "amount must not be negative")
			return
		}
		updates["amount"] = *req.Amount
	}
	if req.Kind != nil {
		if !models.ValidKind(*req.Kind) {
			utils.RespondWithError(w, http.StatusBadRequest, "kind must be income or expense")
			return
		}
		updates["kind"] = *req.Kind
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or RFC 3339")
			return
		}
		updates["date"] = date
	}
	if req.Tags != nil {
		updates["tags"] = pq.StringArray(req.Tags)
	}

	transaction, err := h.store.Update(r.Context(), id, userID, updates)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log.Printf("Error updating transaction %d for user %d: %v", id, userID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "persistence error")
		return
	}

	if h.hub != nil {
		h.hub.Publish(userID, events.Event{Type: events.TransactionUpdated, Transaction: transaction})
	}

	utils.RespondWithJSON(w, http.StatusOK, transaction)
}

func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := parseTransactionID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	if err := h.store.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log.Printf("Error deleting transaction %d for user %d: %v", id, userID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "persistence error")
		return
	}

	if h.hub != nil {
		h.hub.Publish(userID, events.Event{Type: events.TransactionDeleted, ID: id})
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted"})
}

func parseTransactionID(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
