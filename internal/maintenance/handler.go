package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"highfive-server/internal/observability"
)

// TokenPurger deletes refresh tokens past their expiry.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, batchSize int) (int64, error)
}

// FollowReconciler repairs follow edges present on only one side.
type FollowReconciler interface {
	ReconcileFollows(ctx context.Context) (added, removed int64, err error)
}

// CleanupHandler is the cron-driven sweep: expired refresh tokens are purged
// and asymmetric follow edges repaired. Hidden unless CRON_SECRET is set.
type CleanupHandler struct {
	tokens     TokenPurger
	follows    FollowReconciler
	logger     *observability.Logger
	cronSecret string
	batchSize  int
}

func NewCleanupHandler(
	tokens TokenPurger,
	follows FollowReconciler,
	logger *observability.Logger,
	cronSecret string,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		tokens:     tokens,
		follows:    follows,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	purged, err := h.tokens.PurgeExpired(r.Context(), h.batchSize)
	if err != nil {
		h.logger.Error("refresh_token_purge_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	added, removed, err := h.follows.ReconcileFollows(r.Context())
	if err != nil {
		h.logger.Error("follow_reconcile_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	if added > 0 || removed > 0 {
		h.logger.Warn("follow_edges_repaired", map[string]any{
			"mirrors_added":   added,
			"orphans_removed": removed,
		})
	}

	h.logger.Info("cleanup_completed", map[string]any{
		"purged_refresh_tokens":  purged,
		"follow_mirrors_added":   added,
		"follow_orphans_removed": removed,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": map[string]int64{
			"purged_refresh_tokens":  purged,
			"follow_mirrors_added":   added,
			"follow_orphans_removed": removed,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
