package analytics

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/finman-app/finman-server/cmd/models"
	"github.com/finman-app/finman-server/cmd/utils"
	"github.com/gorilla/mux"
)

// Lister fetches the snapshot of the caller's records the aggregations run on.
type Lister interface {
	ListByOwner(ctx context.Context, userID uint) ([]models.Transaction, error)
}

type AnalyticsHandler struct {
	store Lister
}

func NewAnalyticsHandler(store Lister) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

// RegisterRoutes registers analytics routes with Gorilla Mux
func (h *AnalyticsHandler) RegisterRoutes(router *mux.Router) {
	analyticsRouter := router.PathPrefix("/analytics").Subrouter()

	analyticsRouter.HandleFunc("/summary", utils.AuthMiddleware(h.GetSummary)).Methods("GET")
	analyticsRouter.HandleFunc("/categories", utils.AuthMiddleware(h.GetCategoryRollup)).Methods("GET")
	analyticsRouter.HandleFunc("/recent", utils.AuthMiddleware(h.GetRecent)).Methods("GET")
}

// filterFromQuery builds the aggregation filter from query parameters. All
// three endpoints accept the same kind/category/search parameters.
func filterFromQuery(r *http.Request) (Filter, bool) {
	query := r.URL.Query()
	f := Filter{
		Kind:     query.Get("kind"),
		Category: query.Get("category"),
		Search:   query.Get("search"),
	}
	if f.Kind != "" && !models.ValidKind(f.Kind) {
		return Filter{}, false
	}
	return f, true
}

func (h *AnalyticsHandler) snapshot(w http.ResponseWriter, r *http.Request) ([]models.Transaction, bool) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	f, ok := filterFromQuery(r)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "kind must be income or expense")
		return nil, false
	}

	records, err := h.store.ListByOwner(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing transactions for user %d: %v", userID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "persistence error")
		return nil, false
	}

	return Apply(records, f), true
}

func (h *AnalyticsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	records, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, Summarize(records))
}

func (h *AnalyticsHandler) GetCategoryRollup(w http.ResponseWriter, r *http.Request) {
	records, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, CategoryRollup(records))
}

func (h *AnalyticsHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	records, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	limit := 5
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			utils.RespondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	utils.RespondWithJSON(w, http.StatusOK, Recent(records, limit))
}
