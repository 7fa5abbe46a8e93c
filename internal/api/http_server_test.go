package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"recinto/internal/config"
	"recinto/internal/coordinator"
	"recinto/internal/database"
	"recinto/internal/domain"
	"recinto/internal/events"
	"recinto/internal/models"
	"recinto/internal/repository"
	"recinto/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.Notification) {}

type testHarness struct {
	server *HTTPServer
	ts     *httptest.Server
	coord  *coordinator.Coordinator
}

func testResources() []models.Resource {
	return []models.Resource{
		{
			ID: 1, Name: "Cabaña Norte",
			Category: models.CategoryCabin, Modality: models.PerNight,
			BaseCapacity: 4, ExtraCapacity: 2,
			MemberRate: 25000, ExternalRate: 40000,
			MemberExtraRate: 5000, ExternalExtraRate: 8000,
			IsActive: true, IsVisible: true,
		},
		{
			ID: 2, Name: "Quincho Cerrado",
			Category: models.CategoryPavilion, Modality: models.PerDay,
			BaseCapacity: 30, MemberRate: 30000, ExternalRate: 60000,
			IsActive: true, IsVisible: false,
		},
	}
}

func newHarness(t *testing.T, cfg config.APIConfig) *testHarness {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.Disabled)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	coord := coordinator.New(&logger)
	feed := events.NewFeed(models.DefaultFeedBuffer)
	t.Cleanup(feed.Close)
	cache := repository.NewMemoryIntervalCache(time.Minute)

	catalog := service.NewCatalogService(db, testResources(), &logger)
	reservations := service.NewReservationService(db, cache, coord, feed, noopNotifier{}, &logger)

	server := NewHTTPServer(cfg, catalog, reservations, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testHarness{server: server, ts: ts, coord: coord}
}

func (h *testHarness) request(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.ts.URL+path, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

// 2030-06-03 is a Monday.
func reservationBody() map[string]any {
	return map[string]any{
		"resource_id":    1,
		"requester_id":   42,
		"requester_name": "Ana",
		"role":           "member",
		"usage":          "personal_use",
		"start_date":     "2030-06-04",
		"end_date":       "2030-06-07",
		"occupants":      4,
	}
}

func TestAuth(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: "portal-key", Name: "portal", Permissions: []string{"read:resources"}},
				{Key: "admin-key", Name: "admin"},
			},
		},
	}
	h := newHarness(t, cfg)

	t.Run("missing key", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodGet, "/api/v1/resources", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid key", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodGet, "/api/v1/resources", nil, map[string]string{"x-api-key": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid key", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodGet, "/api/v1/resources", nil, map[string]string{"x-api-key": "portal-key"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("permission denied", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, "/api/v1/reservations", reservationBody(), map[string]string{"x-api-key": "portal-key"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("empty permissions allow all", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, "/api/v1/reservations/quote", reservationBody(), map[string]string{"x-api-key": "admin-key"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled:   true,
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 2},
	}
	h := newHarness(t, cfg)

	limited := false
	for i := 0; i < 5; i++ {
		resp, _ := h.request(t, http.MethodGet, "/api/v1/resources", nil, nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected a 429 after exhausting the burst")
}

func TestResources(t *testing.T) {
	h := newHarness(t, config.APIConfig{Enabled: true})

	t.Run("visible only by default", func(t *testing.T) {
		resp, body := h.request(t, http.MethodGet, "/api/v1/resources", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Resources []models.Resource `json:"resources"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Resources, 1)
		assert.Equal(t, int64(1), out.Resources[0].ID)
	})

	t.Run("all includes hidden", func(t *testing.T) {
		resp, body := h.request(t, http.MethodGet, "/api/v1/resources?all=true", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Resources []models.Resource `json:"resources"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Len(t, out.Resources, 2)
	})

	t.Run("unknown resource", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodGet, "/api/v1/resources/99", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestQuoteEndpoint(t *testing.T) {
	h := newHarness(t, config.APIConfig{Enabled: true})

	t.Run("member three nights", func(t *testing.T) {
		resp, body := h.request(t, http.MethodPost, "/api/v1/reservations/quote", reservationBody(), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var quote service.Quote
		require.NoError(t, json.Unmarshal(body, &quote))
		assert.Equal(t, 3, quote.StayDays)
		assert.Equal(t, int64(75000), quote.TotalAmount)
	})

	t.Run("monday start rejected with reason code", func(t *testing.T) {
		payload := reservationBody()
		payload["start_date"] = "2030-06-03"
		payload["end_date"] = "2030-06-06"

		resp, body := h.request(t, http.MethodPost, "/api/v1/reservations/quote", payload, nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var out map[string]string
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "START_ON_MONDAY", out["code"])
	})

	t.Run("bad date format", func(t *testing.T) {
		payload := reservationBody()
		payload["start_date"] = "04/06/2030"

		resp, _ := h.request(t, http.MethodPost, "/api/v1/reservations/quote", payload, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		payload := reservationBody()
		payload["role"] = "superuser"

		resp, body := h.request(t, http.MethodPost, "/api/v1/reservations/quote", payload, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var out map[string]string
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "INVALID_ARGUMENT", out["code"])
	})

	t.Run("unknown usage rejected", func(t *testing.T) {
		payload := reservationBody()
		payload["usage"] = "sublet"

		resp, _ := h.request(t, http.MethodPost, "/api/v1/reservations/quote", payload, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("empty role and usage default", func(t *testing.T) {
		payload := reservationBody()
		payload["role"] = ""
		payload["usage"] = ""

		resp, body := h.request(t, http.MethodPost, "/api/v1/reservations/quote", payload, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var quote service.Quote
		require.NoError(t, json.Unmarshal(body, &quote))
		assert.Equal(t, int64(75000), quote.TotalAmount, "defaults to member rates")
	})
}

func TestReservationFlow(t *testing.T) {
	h := newHarness(t, config.APIConfig{Enabled: true})

	resp, body := h.request(t, http.MethodPost, "/api/v1/reservations", reservationBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Reservation
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotZero(t, created.ID)
	assert.Equal(t, models.StatusPendingPayment, created.Status)
	assert.Equal(t, int64(75000), created.TotalAmount)

	base := fmt.Sprintf("/api/v1/reservations/%d", created.ID)

	t.Run("local collection holds the record", func(t *testing.T) {
		got, ok := h.coord.Get(created.ID)
		require.True(t, ok)
		assert.Equal(t, models.StatusPendingPayment, got.Status)
	})

	t.Run("overlapping create conflicts", func(t *testing.T) {
		resp, body := h.request(t, http.MethodPost, "/api/v1/reservations", reservationBody(), nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var out map[string]string
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "DATE_CONFLICT", out["code"])
	})

	t.Run("occupied intervals reflect the booking", func(t *testing.T) {
		resp, body := h.request(t, http.MethodGet, "/api/v1/resources/1/occupied", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Occupied []models.OccupiedInterval `json:"occupied"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Len(t, out.Occupied, 1)
	})

	t.Run("confirm without proof denied", func(t *testing.T) {
		resp, body := h.request(t, http.MethodPost, base+"/status",
			map[string]any{"to": "confirmed", "actor_id": 1}, nil)
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		var out map[string]string
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "MISSING_PAYMENT_PROOF", out["code"])
	})

	t.Run("attach proof then confirm", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, base+"/proof",
			map[string]any{"reference": "transfer-123"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := h.request(t, http.MethodPost, base+"/status",
			map[string]any{"to": "confirmed", "actor_id": 1, "reference": "transfer-123"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated models.Reservation
		require.NoError(t, json.Unmarshal(body, &updated))
		assert.Equal(t, models.StatusConfirmed, updated.Status)
	})

	t.Run("treasury movement recorded once", func(t *testing.T) {
		resp, body := h.request(t, http.MethodGet, base+"/movements", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Movements []models.TreasuryMovement `json:"movements"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Movements, 1)
		assert.Equal(t, int64(75000), out.Movements[0].Amount)
	})

	t.Run("cancel requires reason", func(t *testing.T) {
		resp, body := h.request(t, http.MethodPost, base+"/status",
			map[string]any{"to": "cancelled", "actor_id": 1}, nil)
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		var out map[string]string
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "MISSING_REASON", out["code"])
	})

	t.Run("cancel frees the range", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodPost, base+"/status",
			map[string]any{"to": "cancelled", "actor_id": 1, "reason": "guest request"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = h.request(t, http.MethodPost, "/api/v1/reservations", reservationBody(), nil)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})
}

func TestListReservations(t *testing.T) {
	h := newHarness(t, config.APIConfig{Enabled: true})

	resp, _ := h.request(t, http.MethodPost, "/api/v1/reservations", reservationBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("filter by status", func(t *testing.T) {
		resp, body := h.request(t, http.MethodGet, "/api/v1/reservations?status=pending_payment", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Reservations []models.Reservation `json:"reservations"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Len(t, out.Reservations, 1)
	})

	t.Run("filter misses", func(t *testing.T) {
		resp, body := h.request(t, http.MethodGet, "/api/v1/reservations?status=confirmed", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Reservations []models.Reservation `json:"reservations"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Empty(t, out.Reservations)
	})

	t.Run("bad resource_id", func(t *testing.T) {
		resp, _ := h.request(t, http.MethodGet, "/api/v1/reservations?resource_id=abc", nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
