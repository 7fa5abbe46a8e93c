package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"recinto/internal/config"
	"recinto/internal/database"
	"recinto/internal/domain"
	"recinto/internal/metrics"
	"recinto/internal/models"
	"recinto/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking core over a JSON API for the member portal.
type HTTPServer struct {
	cfg          config.APIConfig
	catalog      *service.CatalogService
	reservations *service.ReservationService
	server       *http.Server
	auth         *HTTPAuth
	logger       zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	catalog *service.CatalogService,
	reservations *service.ReservationService,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:          cfg,
		catalog:      catalog,
		reservations: reservations,
		auth:         NewHTTPAuth(cfg),
		logger:       logger.With().Str("component", "http").Logger(),
	}

	mux.HandleFunc("/api/v1/resources", srv.handleResources)
	mux.HandleFunc("/api/v1/resources/", srv.handleResource)
	mux.HandleFunc("/api/v1/reservations", srv.handleReservations)
	mux.HandleFunc("/api/v1/reservations/quote", srv.handleQuote)
	mux.HandleFunc("/api/v1/reservations/", srv.handleReservation)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the composed handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	metrics.IncHTTP("resources")

	resources := s.catalog.VisibleResources()
	if r.URL.Query().Get("all") == "true" {
		resources = s.catalog.AllResources()
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

// handleResource serves /api/v1/resources/{id} and
// /api/v1/resources/{id}/occupied.
func (s *HTTPServer) handleResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/resources/")
	idStr, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "resource id must be a positive integer")
		return
	}

	switch sub {
	case "":
		metrics.IncHTTP("resource")
		resource, err := s.catalog.GetResource(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
			return
		}
		writeJSON(w, http.StatusOK, resource)
	case "occupied":
		metrics.IncHTTP("occupied")
		intervals, err := s.reservations.OccupiedIntervals(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"occupied": intervals})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	}
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReservations(w, r)
	case http.MethodPost:
		s.createReservation(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (s *HTTPServer) listReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_list")

	q := r.URL.Query()
	filter := domain.ReservationFilter{
		Status: models.ReservationStatus(q.Get("status")),
	}
	if v := q.Get("resource_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid resource_id")
			return
		}
		filter.ResourceID = id
	}
	if v := q.Get("requester_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid requester_id")
			return
		}
		filter.RequesterID = id
	}
	for param, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if v := q.Get(param); v != "" {
			d, err := time.Parse("2006-01-02", v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid %s date; expected YYYY-MM-DD", param))
				return
			}
			*dst = d
		}
	}

	list, err := s.reservations.ListReservations(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *HTTPServer) createReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_create")

	req, ok := decodeReservationRequest(w, r)
	if !ok {
		return
	}

	created, err := s.reservations.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	metrics.IncHTTP("reservations_quote")

	req, ok := decodeReservationRequest(w, r)
	if !ok {
		return
	}

	quote, err := s.reservations.Quote(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handleReservation serves /api/v1/reservations/{id} and its subresources
// status, proof and movements.
func (s *HTTPServer) handleReservation(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/reservations/")
	idStr, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "reservation id must be a positive integer")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		metrics.IncHTTP("reservation_get")
		reservation, err := s.reservations.GetReservation(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reservation)

	case sub == "status" && r.Method == http.MethodPost:
		metrics.IncHTTP("reservation_status")
		s.changeStatus(w, r, id)

	case sub == "proof" && r.Method == http.MethodPost:
		metrics.IncHTTP("reservation_proof")
		s.attachProof(w, r, id)

	case sub == "movements" && r.Method == http.MethodGet:
		metrics.IncHTTP("reservation_movements")
		movements, err := s.reservations.ListTreasuryMovements(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"movements": movements})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (s *HTTPServer) changeStatus(w http.ResponseWriter, r *http.Request, id int64) {
	var body service.StatusChangeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.ReservationID = id
	// Status changes through the portal are always admin-driven; the system
	// actor is reserved for the expiry worker.
	body.Actor = "admin"

	updated, err := s.reservations.ChangeStatus(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) attachProof(w http.ResponseWriter, r *http.Request, id int64) {
	var body struct {
		Reference string `json:"reference"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Reference) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "reference is required")
		return
	}

	if err := s.reservations.AttachPaymentProof(r.Context(), id, body.Reference); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeReservationRequest(w http.ResponseWriter, r *http.Request) (service.ReservationRequest, bool) {
	var body struct {
		ResourceID      int64  `json:"resource_id"`
		RequesterID     int64  `json:"requester_id"`
		RequesterName   string `json:"requester_name"`
		Role            string `json:"role"`
		Usage           string `json:"usage"`
		ResponsibleName string `json:"responsible_name"`
		StartDate       string `json:"start_date"`
		EndDate         string `json:"end_date"`
		Occupants       int64  `json:"occupants"`
	}
	if !decodeJSON(w, r, &body) {
		return service.ReservationRequest{}, false
	}

	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid start_date; expected YYYY-MM-DD")
		return service.ReservationRequest{}, false
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid end_date; expected YYYY-MM-DD")
		return service.ReservationRequest{}, false
	}

	role := models.RequesterRole(body.Role)
	if body.Role == "" {
		role = models.RoleMember
	}
	switch role {
	case models.RoleMember, models.RoleExternal, models.RoleAdmin:
	default:
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("unknown role %q", body.Role))
		return service.ReservationRequest{}, false
	}

	usage := models.UsageKind(body.Usage)
	if body.Usage == "" {
		usage = models.UsagePersonal
	}
	switch usage {
	case models.UsagePersonal, models.UsageDirect, models.UsageThirdParty:
	default:
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("unknown usage %q", body.Usage))
		return service.ReservationRequest{}, false
	}

	return service.ReservationRequest{
		ResourceID:      body.ResourceID,
		RequesterID:     body.RequesterID,
		RequesterName:   body.RequesterName,
		Role:            role,
		Usage:           usage,
		ResponsibleName: body.ResponsibleName,
		StartDate:       start,
		EndDate:         end,
		Occupants:       body.Occupants,
	}, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps service errors onto HTTP statuses and stable codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var admErr *service.AdmissionError
	if errors.As(err, &admErr) {
		writeError(w, http.StatusUnprocessableEntity, string(admErr.Rejection.Reason), admErr.Rejection.Detail)
		return
	}

	var trErr *service.TransitionError
	if errors.As(err, &trErr) {
		writeError(w, http.StatusConflict, string(trErr.Denial), "transition denied")
		return
	}

	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, database.ErrVersionConflict):
		writeError(w, http.StatusConflict, "VERSION_CONFLICT", "reservation was modified concurrently")
	case errors.Is(err, database.ErrNotAvailable):
		writeError(w, http.StatusConflict, "DATE_CONFLICT", "range is not available")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, map[string]string{"code": code, "error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
