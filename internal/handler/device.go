package handler

import (
	"encoding/json"
	"net/http"

	"nostrpush/internal/httputil"
	"nostrpush/internal/model"
	"nostrpush/internal/service"
	authmw "nostrpush/internal/transport/http/middleware"
)

// DeviceHandler exposes the device-token registration API consumed by the
// mobile client.
type DeviceHandler struct {
	deviceService *service.DeviceService
}

func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

// Register handles POST /user-info. The authenticated pubkey must equal the
// pubkey in the body: users can only register devices for themselves.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAndAuthorize(w, r)
	if !ok {
		return
	}

	if err := h.deviceService.RegisterDevice(r.Context(), req.Pubkey, req.DeviceToken); err != nil {
		httputil.WriteInternalError(w, "Failed to save user info")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "User info saved successfully"})
}

// Unregister handles DELETE /user-info.
func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAndAuthorize(w, r)
	if !ok {
		return
	}

	if err := h.deviceService.UnregisterDevice(r.Context(), req.Pubkey, req.DeviceToken); err != nil {
		httputil.WriteInternalError(w, "Failed to remove user info")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "User info removed successfully"})
}

func (h *DeviceHandler) decodeAndAuthorize(w http.ResponseWriter, r *http.Request) (*model.RegisterDeviceRequest, bool) {
	var req model.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return nil, false
	}
	if req.Pubkey == "" || req.DeviceToken == "" {
		httputil.WriteBadRequest(w, "pubkey and deviceToken are required")
		return nil, false
	}

	authedPubkey, ok := authmw.GetPubkeyFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Missing authenticated pubkey")
		return nil, false
	}
	if authedPubkey != req.Pubkey {
		httputil.WriteForbidden(w, "Authenticated pubkey does not match request pubkey")
		return nil, false
	}

	return &req, true
}
