package watch

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/beheryahmed1991/watch-metering.git/internal/middleware"
)

// HistoryReader lists a user's events inside that user's unit of work.
type HistoryReader interface {
	History(ctx context.Context, userID uuid.UUID) ([]Event, error)
}

// Handler exposes the caller's watch history.
type Handler struct {
	history HistoryReader
	log     *slog.Logger
}

func NewHandler(history HistoryReader, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{history: history, log: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/history", middleware.RequireUser(), h.list)
}

// list godoc
// @Summary List the caller's watch history, most recent first
// @Tags history
// @Produce json
// @Param X-User-ID header string true "caller id"
// @Success 200 {array} Event
// @Router /history [get]
func (h *Handler) list(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	events, err := h.history.History(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		h.log.Error("list history failed", "user_id", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if events == nil {
		events = []Event{}
	}

	c.JSON(http.StatusOK, events)
}
