package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beheryahmed1991/watch-metering.git/internal/middleware"
)

const layoutFullDate = "2006-01-02"

var registerDecimalOnce sync.Once

// registerDecimal lets binding tags such as gt=0 apply to decimal fields.
func registerDecimal() {
	registerDecimalOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
	})
}

// Handler exposes HTTP handlers for subscription resources.
type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	registerDecimal()
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/plans", h.plans)

	group := router.Group("/subscriptions", middleware.RequireUser())
	group.POST("", h.create)
	group.GET("/current", h.current)
	group.POST("/current/refresh", h.refresh)
	group.DELETE("/:id", h.delete)
}

type createSubscriptionRequest struct {
	Plan    string           `json:"plan" binding:"required"`
	Price   *decimal.Decimal `json:"price" binding:"omitempty,gt=0"`
	EndDate string           `json:"end_date"`
}

type subscriptionResponse struct {
	Subscription
	Remaining int `json:"remaining"`
}

func newSubscriptionResponse(sub Subscription) subscriptionResponse {
	return subscriptionResponse{Subscription: sub, Remaining: sub.Remaining()}
}

// plans godoc
// @Summary List subscription plans
// @Tags plans
// @Produce json
// @Success 200 {array} PlanSpec
// @Router /plans [get]
func (h *Handler) plans(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Plans())
}

// create godoc
// @Summary Subscribe to a plan
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param X-User-ID header string true "caller id"
// @Success 201 {object} subscriptionResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /subscriptions [post]
func (h *Handler) create(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := ParsePlan(req.Plan)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := CreateParams{UserID: userID, Plan: plan}
	if plan == PlanCustom {
		if req.Price == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price is required for a Custom plan"})
			return
		}
		end, err := parseDate(req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		params.Price = *req.Price
		params.EndDate = end
	}

	sub, err := h.svc.Create(c.Request.Context(), params)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, newSubscriptionResponse(sub))
}

// current godoc
// @Summary Show the active subscription with refreshed usage
// @Tags subscriptions
// @Produce json
// @Param X-User-ID header string true "caller id"
// @Success 200 {object} subscriptionResponse
// @Failure 404 {object} map[string]string
// @Router /subscriptions/current [get]
func (h *Handler) current(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	sub, err := h.svc.Current(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newSubscriptionResponse(sub))
}

// refresh godoc
// @Summary Recompute usage for the active subscription
// @Tags subscriptions
// @Produce json
// @Param X-User-ID header string true "caller id"
// @Success 200 {object} map[string]int
// @Failure 404 {object} map[string]string
// @Router /subscriptions/current/refresh [post]
func (h *Handler) refresh(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	total, err := h.svc.RefreshUsage(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"total_watched": total})
}

// delete godoc
// @Summary Cancel the active subscription and wipe watch history
// @Tags subscriptions
// @Param X-User-ID header string true "caller id"
// @Param id path string true "subscription id"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /subscriptions/{id} [delete]
func (h *Handler) delete(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, id); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidPlan):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		h.log.Error("subscription request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("end_date is required for a Custom plan")
	}
	if t, err := time.Parse(layoutFullDate, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("end_date must be in YYYY-MM-DD or RFC 3339 format")
}
