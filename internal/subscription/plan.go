package subscription

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Plan names a subscription bundle.
type Plan string

const (
	PlanBasic    Plan = "Basic"
	PlanAdvanced Plan = "Advanced"
	PlanPremium  Plan = "Premium"
	PlanCustom   Plan = "Custom"
)

const day = 24 * time.Hour

// PlanSpec is one row of the fixed plan catalogue.
type PlanSpec struct {
	Name         Plan            `json:"name"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"`
	MaxVideos    int             `json:"max_videos"`
	Description  string          `json:"description"`
}

var catalogue = []PlanSpec{
	newPlanSpec(PlanBasic, "5.00", 30, 100),
	newPlanSpec(PlanAdvanced, "10.00", 30, 500),
	newPlanSpec(PlanPremium, "20.00", 30, 1000),
}

func newPlanSpec(name Plan, price string, days, maxVideos int) PlanSpec {
	p := decimal.RequireFromString(price)
	return PlanSpec{
		Name:         name,
		Price:        p,
		DurationDays: days,
		MaxVideos:    maxVideos,
		Description:  fmt.Sprintf("%s plan: $%s, %d days, %d videos", name, p.StringFixed(2), days, maxVideos),
	}
}

// Catalogue returns the named plans in ascending price order.
func Catalogue() []PlanSpec {
	out := make([]PlanSpec, len(catalogue))
	copy(out, catalogue)
	return out
}

// LookupPlan returns the catalogue entry for a named plan. Custom is not in the catalogue.
func LookupPlan(p Plan) (PlanSpec, bool) {
	for _, spec := range catalogue {
		if spec.Name == p {
			return spec, true
		}
	}
	return PlanSpec{}, false
}

// ParsePlan accepts a plan name in any letter case.
func ParsePlan(value string) (Plan, error) {
	value = strings.TrimSpace(value)
	for _, p := range []Plan{PlanBasic, PlanAdvanced, PlanPremium, PlanCustom} {
		if strings.EqualFold(value, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown plan %q", ErrInvalidPlan, value)
}

// Terms are the resolved commercial parameters of a new subscription.
type Terms struct {
	Plan      Plan
	Price     decimal.Decimal
	MaxVideos int
	EndDate   time.Time
}

// Prices are stored as NUMERIC(12, 2).
const priceScale = 2

var maxPrice = decimal.RequireFromString("9999999999.99")

// Resolve turns a subscribe request into concrete terms as of now.
func Resolve(params CreateParams, now time.Time) (Terms, error) {
	if params.Plan != PlanCustom {
		spec, ok := LookupPlan(params.Plan)
		if !ok {
			return Terms{}, fmt.Errorf("%w: unknown plan %q", ErrInvalidPlan, params.Plan)
		}
		return Terms{
			Plan:      spec.Name,
			Price:     spec.Price,
			MaxVideos: spec.MaxVideos,
			EndDate:   now.AddDate(0, 0, spec.DurationDays),
		}, nil
	}

	if !params.Price.IsPositive() {
		return Terms{}, fmt.Errorf("%w: price must be greater than zero", ErrInvalidPlan)
	}
	if !params.Price.Equal(params.Price.Round(priceScale)) {
		return Terms{}, fmt.Errorf("%w: price must have at most %d decimal places", ErrInvalidPlan, priceScale)
	}
	if params.Price.GreaterThan(maxPrice) {
		return Terms{}, fmt.Errorf("%w: price must not exceed %s", ErrInvalidPlan, maxPrice.StringFixed(priceScale))
	}
	if !params.EndDate.After(now) {
		return Terms{}, fmt.Errorf("%w: end date must be in the future", ErrInvalidPlan)
	}

	days := int(params.EndDate.Sub(now) / day)
	maxVideos, err := CustomQuota(params.Price, days)
	if err != nil {
		return Terms{}, err
	}

	return Terms{
		Plan:      PlanCustom,
		Price:     params.Price,
		MaxVideos: maxVideos,
		EndDate:   params.EndDate,
	}, nil
}

// CustomQuota computes ceil((5/3) * days * price). Whole days only, so an end
// date less than a day away yields a zero quota.
func CustomQuota(price decimal.Decimal, days int) (int, error) {
	if days < 0 {
		days = 0
	}
	quota := decimal.NewFromInt(5).
		Mul(decimal.NewFromInt(int64(days))).
		Mul(price).
		Div(decimal.NewFromInt(3)).
		Ceil()

	if quota.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0, fmt.Errorf("%w: quota %s exceeds the supported maximum", ErrInvalidPlan, quota)
	}
	return int(quota.IntPart()), nil
}
