package handlers

import (
	"encoding/json"
	"net/http"

	"qrscan/internal/dto"
	"qrscan/internal/logger"
	"qrscan/internal/scan"
	"qrscan/internal/services"
)

// Session commands are fire-and-forget: they answer 202 with the snapshot
// taken at the time of the request. Viewers follow the outcome on /api/view.
func sessionCommandHandler(manager *services.Manager, command func(*scan.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := manager.GetSession()
		command(session)
		writeJSON(w, http.StatusAccepted, session.Snapshot())
	}
}

func StartSessionHandler(manager *services.Manager) http.HandlerFunc {
	return sessionCommandHandler(manager, (*scan.Session).Start)
}

func BeginScanningHandler(manager *services.Manager) http.HandlerFunc {
	return sessionCommandHandler(manager, (*scan.Session).BeginScanning)
}

func CancelScanHandler(manager *services.Manager) http.HandlerFunc {
	return sessionCommandHandler(manager, (*scan.Session).Cancel)
}

func RetryPermissionHandler(manager *services.Manager) http.HandlerFunc {
	return sessionCommandHandler(manager, (*scan.Session).RetryPermission)
}

func ResetSessionHandler(manager *services.Manager) http.HandlerFunc {
	return sessionCommandHandler(manager, (*scan.Session).Reset)
}

// RescanHandler discards the current result and starts a new run.
func RescanHandler(manager *services.Manager) http.HandlerFunc {
	return sessionCommandHandler(manager, func(s *scan.Session) {
		s.Reset()
		s.Start()
	})
}

func RefreshDevicesHandler(manager *services.Manager) http.HandlerFunc {
	return sessionCommandHandler(manager, (*scan.Session).RefreshDevices)
}

// SelectDeviceHandler switches the session to the camera named in the body.
func SelectDeviceHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.DeviceRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil || req.ID == "" {
			http.Error(w, "Device id required", http.StatusBadRequest)
			return
		}

		devices, err := manager.GetCameras().ListDevices(r.Context())
		if err != nil {
			logger.Error("Error listing cameras: %v", err)
			http.Error(w, "Error accessing camera devices", http.StatusServiceUnavailable)
			return
		}
		known := false
		for _, d := range devices {
			if d.ID == req.ID {
				known = true
				break
			}
		}
		if !known {
			http.Error(w, "Unknown device", http.StatusNotFound)
			return
		}

		logger.Info("Switching scanner to %s", req.ID)
		session := manager.GetSession()
		session.SwitchDevice(req.ID)
		writeJSON(w, http.StatusAccepted, session.Snapshot())
	}
}

func SessionStatusHandler(manager *services.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.SessionStatus{
			Session:       manager.GetSession().Snapshot(),
			OpenStreams:   manager.GetCameras().OpenCount(),
			Viewers:       manager.GetWebsocketService().GetClientCount(),
			PendingExport: manager.GetBufferService().Pending(),
		})
	}
}

// ListDevicesHandler enumerates cameras directly, independent of the session state.
func ListDevicesHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := manager.GetCameras().ListDevices(r.Context())
		if err != nil {
			logger.Error("Error listing cameras: %v", err)
			http.Error(w, "Error accessing camera devices", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"devices":  devices,
			"selected": manager.GetSession().Snapshot().SelectedDevice,
		})
	}
}
