package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"qrscan/internal/handlers"
	"qrscan/internal/logger"
	"qrscan/internal/middleware"
	"qrscan/internal/services"

	"github.com/gorilla/mux"
)

// StaticDir holds the viewer pages.
var StaticDir = "static"

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(StaticDir, filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the session API, scan history, log and auth endpoints
// and wraps the router with the authentication middleware.
func SetupRoutes(manager *services.Manager, auth *middleware.Auth, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(StaticDir))))

	api := r.PathPrefix("/api").Subrouter()

	// Scanning session
	api.HandleFunc("/session", handlers.SessionStatusHandler(manager)).Methods(http.MethodGet)
	api.HandleFunc("/session/start", handlers.StartSessionHandler(manager)).Methods(http.MethodPost)
	api.HandleFunc("/session/begin", handlers.BeginScanningHandler(manager)).Methods(http.MethodPost)
	api.HandleFunc("/session/cancel", handlers.CancelScanHandler(manager)).Methods(http.MethodPost)
	api.HandleFunc("/session/retry", handlers.RetryPermissionHandler(manager)).Methods(http.MethodPost)
	api.HandleFunc("/session/reset", handlers.ResetSessionHandler(manager)).Methods(http.MethodPost)
	api.HandleFunc("/session/rescan", handlers.RescanHandler(manager)).Methods(http.MethodPost)
	api.HandleFunc("/session/device", handlers.SelectDeviceHandler(manager, log)).Methods(http.MethodPost)
	api.HandleFunc("/session/devices/refresh", handlers.RefreshDevicesHandler(manager)).Methods(http.MethodPost)
	api.HandleFunc("/devices", handlers.ListDevicesHandler(manager, log)).Methods(http.MethodGet)
	api.HandleFunc("/view", handlers.ViewWebsocketHandler(manager, log))

	// Scan history
	api.HandleFunc("/results", handlers.GetResultsHandler(manager, log)).Methods(http.MethodGet)
	api.HandleFunc("/results/stats", handlers.GetStatsHandler(manager, log)).Methods(http.MethodGet)
	api.HandleFunc("/results/clear", handlers.ClearResultsHandler(manager, log)).Methods(http.MethodPost)
	api.HandleFunc("/results/flush", handlers.FlushExportsHandler(manager, log)).Methods(http.MethodPost)
	api.HandleFunc("/results/{id:[0-9]+}", handlers.GetResultHandler(manager, log)).Methods(http.MethodGet)
	api.HandleFunc("/results/{id:[0-9]+}", handlers.DeleteResultHandler(manager, log)).Methods(http.MethodDelete)
	api.HandleFunc("/results/{id:[0-9]+}/download", handlers.DownloadResultHandler(manager, log)).Methods(http.MethodGet)
	api.HandleFunc("/results/{id:[0-9]+}/qrcode", handlers.QRCodeHandler(manager, log)).Methods(http.MethodGet)

	// Log endpoints
	for name, file := range map[string]string{
		"info":    logger.InfoFile,
		"warning": logger.WarningFile,
		"error":   logger.ErrorFile,
	} {
		r.HandleFunc("/logs/"+name, handlers.ShowLogsHandler(log, file)).Methods(http.MethodGet)
		r.HandleFunc("/logs/"+name+"/clear", handlers.ClearLogsHandler(log, file)).Methods(http.MethodPost)
	}

	// Auth endpoints
	r.HandleFunc("/auth/login", handlers.LoginHandler(auth, log)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", handlers.LogoutHandler(auth)).Methods(http.MethodGet, http.MethodPost)

	// Automatic HTML handler mapping for example: /history -> /static/history.html
	r.PathPrefix("/").HandlerFunc(dynamicHTMLHandler).Methods(http.MethodGet)

	r.Use(middleware.AuthMiddleware(auth))
	return r
}
