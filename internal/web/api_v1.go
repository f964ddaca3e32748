package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rook-computer/panelcore/internal/config"
	"github.com/rook-computer/panelcore/internal/display"
	"github.com/rook-computer/panelcore/internal/saver"
	"github.com/rook-computer/panelcore/internal/screens"
)

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type screensResponse struct {
	Current string               `json:"current"`
	Screens []display.ScreenInfo `json:"screens"`
}

type screenRequest struct {
	Screen string `json:"screen"`
}

type screenResponse struct {
	OK     bool   `json:"ok"`
	Screen string `json:"screen"`
}

type brightnessRequest struct {
	Brightness *int `json:"brightness"`
}

type brightnessResponse struct {
	OK         bool  `json:"ok"`
	Brightness uint8 `json:"brightness"`
}

type imageResponse struct {
	OK             bool `json:"ok"`
	TimeoutSeconds int  `json:"timeout_seconds"`
}

func apiV1Router(deps APIV1Deps) http.Handler {
	deps = deps.withDefaults()
	mux := http.NewServeMux()
	mux.HandleFunc("/display/screens", func(w http.ResponseWriter, r *http.Request) { handleScreens(w, r, deps) })
	mux.HandleFunc("/display/screen", func(w http.ResponseWriter, r *http.Request) { handleScreen(w, r, deps) })
	mux.HandleFunc("/display/brightness", func(w http.ResponseWriter, r *http.Request) { handleBrightness(w, r, deps) })
	mux.HandleFunc("/display/sleep", func(w http.ResponseWriter, r *http.Request) { handleSleep(w, r, deps) })
	mux.HandleFunc("/display/wake", func(w http.ResponseWriter, r *http.Request) { handleWake(w, r, deps) })
	mux.HandleFunc("/display/activity", func(w http.ResponseWriter, r *http.Request) { handleActivity(w, r, deps) })
	mux.HandleFunc("/display/image", func(w http.ResponseWriter, r *http.Request) { handleImage(w, r, deps) })
	mux.HandleFunc("/display/viewer", func(w http.ResponseWriter, r *http.Request) { handleViewer(w, r, deps) })
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) { handleConfig(w, r, deps) })
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) { handleInfo(w, r, deps) })
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "not_found", "not found")
	})
	return mux
}

func handleScreens(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if deps.Screens == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "display not configured")
		return
	}
	writeJSON(w, http.StatusOK, screensResponse{Current: deps.Screens.CurrentScreenID(), Screens: deps.Screens.Screens()})
}

func handleScreen(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if r.Method != http.MethodPut {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if deps.Screens == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "display not configured")
		return
	}
	var req screenRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	id := strings.TrimSpace(req.Screen)
	if id == "" {
		writeAPIError(w, http.StatusBadRequest, "invalid_screen", "missing screen id")
		return
	}
	deps.Logger.Infof("api", "PUT /display/screen: %s", id)
	if !deps.Screens.RequestShow(id) {
		writeAPIError(w, http.StatusNotFound, "screen_not_found", "Screen not found")
		return
	}
	// Switching screens counts as explicit activity and wakes the panel.
	if deps.Power != nil {
		deps.Power.NotifyActivity(true)
	}
	writeJSON(w, http.StatusOK, screenResponse{OK: true, Screen: id})
}

func handleBrightness(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if r.Method != http.MethodPut {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if deps.Config == nil || deps.Power == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "backlight not configured")
		return
	}
	var req brightnessRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	if req.Brightness == nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_brightness", "missing brightness value")
		return
	}
	// In-RAM only; PUT /config persists.
	level := deps.Config.SetBrightness(*req.Brightness)
	deps.Power.Retarget()
	writeJSON(w, http.StatusOK, brightnessResponse{OK: true, Brightness: level})
}

func handleSleep(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if deps.Power == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "screen saver not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, deps.Power.Status())
	case http.MethodPost:
		deps.Logger.Infof("api", "POST /display/sleep")
		deps.Power.SleepNow()
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func handleWake(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if deps.Power == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "screen saver not configured")
		return
	}
	deps.Logger.Infof("api", "POST /display/wake")
	deps.Power.Wake()
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func handleActivity(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if deps.Power == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "screen saver not configured")
		return
	}
	wake := r.URL.Query().Get("wake") == "1"
	deps.Power.NotifyActivity(wake)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func handleImage(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if deps.Images == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "image display not configured")
		return
	}
	switch r.Method {
	case http.MethodPost:
		timeout, err := parseTimeout(r)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_timeout", err.Error())
			return
		}
		data, ok := readImageBody(w, r, deps)
		if !ok {
			return
		}
		if !isJPEG(data) {
			writeAPIError(w, http.StatusUnsupportedMediaType, "not_jpeg", "body must be a JPEG image")
			return
		}
		img, ok := decodeUpload(w, data, deps)
		if !ok {
			return
		}
		if err := deps.Images.ShowImage(r.Context(), img, timeout); err != nil {
			writeAPIError(w, http.StatusServiceUnavailable, "display_failed", err.Error())
			return
		}
		deps.Logger.Infof("api", "image shown (%d bytes, %s timeout)", len(data), timeout)
		writeJSON(w, http.StatusOK, imageResponse{OK: true, TimeoutSeconds: int(timeout / time.Second)})
	case http.MethodDelete:
		deps.Images.DismissImage(r.Context())
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func handleViewer(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if r.Method != http.MethodPut {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if deps.Images == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "image display not configured")
		return
	}
	data, ok := readImageBody(w, r, deps)
	if !ok {
		return
	}
	img, ok := decodeUpload(w, data, deps)
	if !ok {
		return
	}
	if err := deps.Images.ShowViewer(img, r.URL.Query().Get("caption")); err != nil {
		writeAPIError(w, http.StatusServiceUnavailable, "display_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func handleConfig(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if deps.Config == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "config not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, deps.Config.Snapshot())
	case http.MethodPut:
		// Start from the current config so partial bodies only touch the
		// fields they name.
		cfg := deps.Config.Snapshot()
		if err := decodeJSONBody(r, &cfg); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
			return
		}
		saved, err := deps.Config.Replace(cfg)
		if err != nil {
			if errors.Is(err, config.ErrInvalid) {
				writeAPIError(w, http.StatusBadRequest, "invalid_config", err.Error())
				return
			}
			writeAPIError(w, http.StatusInternalServerError, "config_failed", err.Error())
			return
		}
		if err := deps.Config.Save(); err != nil {
			writeAPIError(w, http.StatusInternalServerError, "save_failed", err.Error())
			return
		}
		if deps.Power != nil {
			deps.Power.Retarget()
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func handleInfo(w http.ResponseWriter, r *http.Request, deps APIV1Deps) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if deps.Info == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "info not configured")
		return
	}
	writeJSON(w, http.StatusOK, deps.Info.Info(r.Context()))
}

// parseTimeout reads ?timeout=seconds, defaulting to 10s and capped at 24h.
func parseTimeout(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return DefaultImageTimeout, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("timeout must be a non-negative integer (got %q)", raw)
	}
	return min(time.Duration(secs)*time.Second, MaxImageTimeout), nil
}

func readImageBody(w http.ResponseWriter, r *http.Request, deps APIV1Deps) ([]byte, bool) {
	if r.ContentLength > deps.MaxImageBytes {
		writeAPIError(w, http.StatusRequestEntityTooLarge, "too_large", "image too large")
		return nil, false
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, deps.MaxImageBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "too_large", "image too large")
			return nil, false
		}
		writeAPIError(w, http.StatusBadRequest, "read_failed", err.Error())
		return nil, false
	}
	if len(data) == 0 {
		writeAPIError(w, http.StatusBadRequest, "empty_body", "no data received")
		return nil, false
	}
	return data, true
}

// decodeUpload checks the claimed size against the panel before decoding.
func decodeUpload(w http.ResponseWriter, data []byte, deps APIV1Deps) (image.Image, bool) {
	img, err := screens.DecodeImage(data, deps.maxImagePixels())
	if errors.Is(err, screens.ErrImageTooLarge) {
		writeAPIError(w, http.StatusBadRequest, "image_too_large", err.Error())
		return nil, false
	}
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "decode_failed", err.Error())
		return nil, false
	}
	return img, true
}

func isJPEG(b []byte) bool {
	return len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF
}

func decodeJSONBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: code, Message: message})
}

var _ Power = (*saver.Manager)(nil)
