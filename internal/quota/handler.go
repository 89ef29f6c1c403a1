package quota

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/beheryahmed1991/watch-metering.git/internal/metrics"
	"github.com/beheryahmed1991/watch-metering.git/internal/middleware"
)

const (
	// IdempotencyHeader lets clients retry a watch without spending quota twice.
	IdempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

// Registrar is the gate as seen by the HTTP layer.
type Registrar interface {
	RegisterWatch(ctx context.Context, userID uuid.UUID, videoID int64, now time.Time) (Decision, error)
}

// Handler exposes the watch endpoint. Decisions made under an idempotency key
// are cached for the configured TTL and replayed to retries, except
// no_subscription denials, which are re-evaluated on every retry.
type Handler struct {
	gate    Registrar
	log     *slog.Logger
	metrics *metrics.Metrics
	replay  *cache.Cache
	flight  singleflight.Group
	now     func() time.Time
}

func NewHandler(gate Registrar, log *slog.Logger, ttl time.Duration, m *metrics.Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Handler{
		gate:    gate,
		log:     log,
		metrics: m,
		replay:  cache.New(ttl, 2*ttl),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/videos/:id/watch", middleware.RequireUser(), h.watch)
}

// watch godoc
// @Summary Register a watch against the caller's quota
// @Tags videos
// @Produce json
// @Param X-User-ID header string true "caller id"
// @Param Idempotency-Key header string false "retry key"
// @Param id path int true "video id"
// @Success 200 {object} Decision
// @Failure 403 {object} Decision
// @Router /videos/{id}/watch [post]
func (h *Handler) watch(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	videoID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || videoID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	decision, replayed, err := h.decide(c.Request.Context(), userID, videoID, c.GetHeader(IdempotencyHeader))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if replayed {
		c.Header(replayedHeader, "true")
	}
	if !decision.Allowed {
		c.JSON(http.StatusForbidden, decision)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (h *Handler) decide(ctx context.Context, userID uuid.UUID, videoID int64, key string) (Decision, bool, error) {
	if key == "" {
		d, err := h.gate.RegisterWatch(ctx, userID, videoID, h.now())
		return d, false, err
	}

	cacheKey := userID.String() + ":" + strconv.FormatInt(videoID, 10) + ":" + key
	if v, ok := h.replay.Get(cacheKey); ok {
		h.metrics.Replayed()
		return v.(Decision), true, nil
	}

	// Concurrent retries share one gate call. The shared call must not die
	// with whichever client disconnects first.
	ctx = context.WithoutCancel(ctx)
	v, err, _ := h.flight.Do(cacheKey, func() (any, error) {
		if v, ok := h.replay.Get(cacheKey); ok {
			return v, nil
		}
		d, err := h.gate.RegisterWatch(ctx, userID, videoID, h.now())
		if err != nil {
			return nil, err
		}
		// A no_subscription denial stops applying as soon as the user subscribes.
		if d.Reason != ReasonNoSubscription {
			h.replay.SetDefault(cacheKey, d)
		}
		return d, nil
	})
	if err != nil {
		return Decision{}, false, err
	}
	return v.(Decision), false, nil
}
