package booking_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-rental/internal/auth"
	"ms-rental/internal/booking"
	"ms-rental/internal/logger"
	"ms-rental/internal/models"
	"ms-rental/internal/utils"
)

type Handler struct {
	BookingService *booking.BookingService
	Logger         *logger.Logger
}

func NewHandler(bookingService *booking.BookingService, log *logger.Logger) *Handler {
	return &Handler{
		BookingService: bookingService,
		Logger:         log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bookings", func(r chi.Router) {
		r.Post("/create-order", h.CreateOrder)
		r.Post("/verify-payment", h.VerifyPayment)
		r.Get("/", h.ListBookings)
		r.Get("/{bookingId}", h.GetBooking)
		r.Get("/{bookingId}/voucher", h.GetVoucher)
		r.Put("/{bookingId}/cancel", h.CancelBooking)
	})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("authentication required", "Unauthorized"))
		return
	}

	var req models.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", string(booking.KindValidation)))
		return
	}

	resp, err := h.BookingService.PlaceBooking(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, "CreateOrder", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateOrder: booking %s created with gateway order %s", resp.BookingID, resp.GatewayOrderID))
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("booking created", resp))
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("authentication required", "Unauthorized"))
		return
	}

	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyPayment: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", string(booking.KindValidation)))
		return
	}
	if req.BookingID == "" || req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.GatewaySignature == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse(
			"booking_id, gateway_order_id, gateway_payment_id and gateway_signature are required",
			string(booking.KindValidation)))
		return
	}

	updated, err := h.BookingService.VerifyPayment(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, "VerifyPayment", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("VerifyPayment: booking %s confirmed", updated.BookingID))
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("payment verified", updated))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("authentication required", "Unauthorized"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")
	found, err := h.BookingService.GetBooking(r.Context(), userID, bookingID)
	if err != nil {
		h.writeError(w, "GetBooking", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("booking retrieved", found))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("authentication required", "Unauthorized"))
		return
	}

	status := models.BookingStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	bookings, err := h.BookingService.ListBookings(r.Context(), userID, status, limit, offset)
	if err != nil {
		h.writeError(w, "ListBookings", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("bookings retrieved", map[string]interface{}{
		"bookings": bookings,
		"limit":    limit,
		"offset":   offset,
		"count":    len(bookings),
	}))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("authentication required", "Unauthorized"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")

	var req models.CancelBookingRequest
	if r.Body != nil {
		// Reason is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cancelled, err := h.BookingService.CancelBooking(r.Context(), userID, bookingID, req.Reason)
	if err != nil {
		h.writeError(w, "CancelBooking", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CancelBooking: booking %s cancelled", cancelled.BookingID))
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("booking cancelled", cancelled))
}

func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("authentication required", "Unauthorized"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")
	png, err := h.BookingService.GetVoucher(r.Context(), userID, bookingID)
	if err != nil {
		h.writeError(w, "GetVoucher", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetVoucher: failed to write response: %v", err))
	}
}

// userID resolves the caller's identity, preferring what the OIDC middleware
// put in the context and falling back to the bearer token's subject claim.
// The middleware already verified the token, so the unverified parse is safe.
func (h *Handler) userID(r *http.Request) string {
	if uid := auth.UserID(r.Context()); uid != "" {
		return uid
	}
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return ""
	}
	uid, err := auth.ExtractUserIDFromJWT(token)
	if err != nil {
		return ""
	}
	return uid
}

// writeError translates a domain error into the response envelope. Internal
// detail stays in the logs.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var de *booking.DomainError
	if errors.As(err, &de) {
		if de.Kind == booking.KindInternal {
			h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
			h.writeJSON(w, de.StatusCode, utils.ErrorResponse("internal server error", string(de.Kind)))
			return
		}
		h.Logger.Warn("API", fmt.Sprintf("%s: %s", op, de.Message))
		if len(de.Conflicts) > 0 {
			h.writeJSON(w, de.StatusCode, utils.ErrorResponseWithData(de.Message, string(de.Kind), map[string]interface{}{
				"conflicts": de.Conflicts,
			}))
			return
		}
		if len(de.Fields) > 0 {
			h.writeJSON(w, de.StatusCode, utils.ErrorResponseWithData(de.Message, string(de.Kind), map[string]interface{}{
				"missing_fields": de.Fields,
			}))
			return
		}
		h.writeJSON(w, de.StatusCode, utils.ErrorResponse(de.Message, string(de.Kind)))
		return
	}

	h.Logger.Error("API", fmt.Sprintf("%s: unclassified error: %v", op, err))
	h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal server error", string(booking.KindInternal)))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	var parsed int
	if _, err := fmt.Sscanf(raw, "%d", &parsed); err != nil {
		return def
	}
	return parsed
}
