package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/capitalize-ai/whatsapp-platform/internal/model"
	"github.com/capitalize-ai/whatsapp-platform/internal/otp"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
)

// OTPHandler handles OTP endpoints.
type OTPHandler struct {
	controller   *otp.Controller
	defaultBrand string
	logger       *logger.Logger
}

// NewOTPHandler creates a new OTP handler.
func NewOTPHandler(controller *otp.Controller, defaultBrand string, log *logger.Logger) *OTPHandler {
	return &OTPHandler{
		controller:   controller,
		defaultBrand: defaultBrand,
		logger:       log,
	}
}

type otpSendRequest struct {
	To               string `json:"to"`
	Brand            string `json:"brand,omitempty"`
	Template         string `json:"template,omitempty"`
	ExpiresInSeconds int    `json:"expires_in_seconds,omitempty"`
}

type otpVerifyRequest struct {
	To   string `json:"to"`
	Code string `json:"code"`
}

// Send handles POST /api/v1/otp/send
func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req otpSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	brand := req.Brand
	if brand == "" {
		brand = h.defaultBrand
	}

	result := h.controller.Send(r.Context(), otp.SendRequest{
		To:        req.To,
		Brand:     brand,
		Template:  req.Template,
		ExpiresIn: time.Duration(req.ExpiresInSeconds) * time.Second,
	})

	writeJSON(w, sendStatus(result), result)
}

// Verify handles POST /api/v1/otp/verify
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	result := h.controller.Verify(r.Context(), req.To, req.Code)
	writeJSON(w, verifyStatus(result), result)
}

// sendStatus maps a send outcome to an HTTP status. The result body is the
// contract; the status is a coarse routing hint for API clients.
func sendStatus(result model.OTPResult) int {
	switch {
	case result.Success:
		return http.StatusOK
	case result.Error == "Invalid phone number format":
		return http.StatusBadRequest
	case strings.HasPrefix(result.Error, "Resend available in"):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func verifyStatus(result model.OTPResult) int {
	switch {
	case result.Success:
		return http.StatusOK
	case result.Error == "Invalid phone number format":
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
