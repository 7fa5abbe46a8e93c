package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	// Counter helpers should not panic
	assert.NotPanics(t, func() {
		IncHTTP("reservations")
		IncRejection("DATE_CONFLICT")
		IncTransition("pending_payment", "confirmed")
		IncTransitionDenial("MISSING_REASON")
		IncFeedEvent("insert")
	})
}
