package catalog_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ms-rental/internal/auth"
	"ms-rental/internal/catalog"
	"ms-rental/internal/logger"
	"ms-rental/internal/models"
	"ms-rental/internal/utils"
)

type Handler struct {
	Catalog *catalog.DB
	Logger  *logger.Logger
}

func NewHandler(cat *catalog.DB, log *logger.Logger) *Handler {
	return &Handler{Catalog: cat, Logger: log}
}

func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		fmt.Sscanf(raw, "%d", &limit)
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		fmt.Sscanf(raw, "%d", &offset)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	vehicles, err := h.Catalog.ListVehicles(r.Context(), limit, offset)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListVehicles: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal server error", "InternalError"))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("vehicles retrieved", vehicles))
}

func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicleId")

	vehicle, err := h.Catalog.FindVehicleByID(r.Context(), vehicleID)
	if errors.Is(err, catalog.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("vehicle not found", "ProductNotFound"))
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetVehicle: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal server error", "InternalError"))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("vehicle retrieved", vehicle))
}

func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	hostID := auth.UserID(r.Context())
	if hostID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("authentication required", "Unauthorized"))
		return
	}

	var req models.CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "ValidationError"))
		return
	}
	if req.Title == "" || req.DailyRate <= 0 {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("title and a positive daily_rate are required", "ValidationError"))
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	vehicle := models.Vehicle{
		ID:        uuid.NewString(),
		HostID:    hostID,
		Title:     req.Title,
		Make:      req.Make,
		Model:     req.Model,
		Year:      req.Year,
		Location:  req.Location,
		DailyRate: req.DailyRate,
		Currency:  currency,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.Catalog.CreateVehicle(r.Context(), vehicle); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateVehicle: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal server error", "InternalError"))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateVehicle: vehicle %s listed by host %s", vehicle.ID, hostID))
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("vehicle created", vehicle))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}
