package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"streamflow/cache"
	"streamflow/config"
	"streamflow/core/billing"
	"streamflow/core/catalog"
	"streamflow/model"
	"streamflow/repository"
)

// APIHandler carries the request-scoped dependencies for all API endpoints.
// Everything is injected at construction; handlers hold no globals.
type APIHandler struct {
	cfg *config.Config

	userRepo     repository.UserRepository
	favoriteRepo repository.FavoriteRepository
	playlistRepo repository.PlaylistRepository
	historyRepo  repository.HistoryRepository
	planRepo     repository.PlanRepository

	catalog *catalog.Client
	billing *billing.Service

	queueStore  *cache.QueueStore
	recentCache *cache.RecentCache
	prefStore   *cache.PreferenceStore
}

// NewAPIHandler creates the API handler with its dependencies.
func NewAPIHandler(
	cfg *config.Config,
	userRepo repository.UserRepository,
	favoriteRepo repository.FavoriteRepository,
	playlistRepo repository.PlaylistRepository,
	historyRepo repository.HistoryRepository,
	planRepo repository.PlanRepository,
	catalogClient *catalog.Client,
	billingService *billing.Service,
	queueStore *cache.QueueStore,
	recentCache *cache.RecentCache,
	prefStore *cache.PreferenceStore,
) *APIHandler {
	return &APIHandler{
		cfg:          cfg,
		userRepo:     userRepo,
		favoriteRepo: favoriteRepo,
		playlistRepo: playlistRepo,
		historyRepo:  historyRepo,
		planRepo:     planRepo,
		catalog:      catalogClient,
		billing:      billingService,
		queueStore:   queueStore,
		recentCache:  recentCache,
		prefStore:    prefStore,
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error body. Messages are human-readable only;
// no structured error codes exist in this API.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type contextKey string

const (
	userIDKey   contextKey = "userID"
	usernameKey contextKey = "username"
)

// GetUserIDFromContext extracts the user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDKey).(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetUsernameFromContext extracts the username from the request context.
func GetUsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameKey).(string)
	if !ok {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

// effectivePlan resolves the plan whose limits apply to a user: the plan of
// an active or trial subscription, otherwise the cheapest (free) plan.
func (h *APIHandler) effectivePlan(userID int64) (*model.SubscriptionPlan, error) {
	sub, err := h.billing.SubscriptionForUser(userID)
	if err == nil && (sub.Status == model.SubscriptionActive || sub.Status == model.SubscriptionTrial) {
		return h.planRepo.GetByID(sub.PlanID)
	}
	if err != nil && !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, err
	}

	plans, err := h.planRepo.List()
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, repository.ErrPlanNotFound
	}
	return &plans[0], nil
}
