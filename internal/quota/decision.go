// Package quota decides whether a user may register another watch.
package quota

// Reason explains a denied watch.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNoSubscription Reason = "no_subscription"
	ReasonQuotaExceeded  Reason = "quota_exceeded"
)

// Decision is the outcome of a watch request. Denials are values, not errors.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Count   int    `json:"total_watched"`
	Limit   int    `json:"max_videos,omitempty"`
	Reason  Reason `json:"reason,omitempty"`
}

func Allowed(count, limit int) Decision {
	return Decision{Allowed: true, Count: count, Limit: limit}
}

func Denied(reason Reason, count, limit int) Decision {
	return Decision{Reason: reason, Count: count, Limit: limit}
}

func (d Decision) outcome() string {
	if d.Allowed {
		return "allowed"
	}
	return "denied"
}
