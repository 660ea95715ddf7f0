package privacy

import "context"

// Category partitions tracked data by purpose.
type Category string

const (
	// CategoryEssential covers events required for the product to function
	// (errors, performance samples). Never gated on consent.
	CategoryEssential Category = "essential"

	// CategoryAnalytics covers behavioral events (page views, interactions,
	// conversions, funnel steps).
	CategoryAnalytics Category = "analytics"

	// CategoryMarketing covers attribution and campaign data.
	CategoryMarketing Category = "marketing"
)

// ConsentChecker is the interface to the externally owned consent workflow.
type ConsentChecker interface {
	// HasConsent reports whether the visitor behind sessionID consented to
	// data collection in the given category.
	HasConsent(ctx context.Context, sessionID string, category Category) bool
}

// AllowAll grants every category. The default for deployments where consent
// is collected upstream of the tracker.
type AllowAll struct{}

func (AllowAll) HasConsent(context.Context, string, Category) bool { return true }

// StaticConsent grants a fixed category set regardless of session. Useful in
// tests and for region-wide policies.
type StaticConsent map[Category]bool

func (s StaticConsent) HasConsent(_ context.Context, _ string, category Category) bool {
	return s[category]
}
