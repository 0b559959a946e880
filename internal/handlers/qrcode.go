package handlers

import (
	"net/http"

	"qrscan/internal/logger"
	"qrscan/internal/services"

	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// QRCodeHandler re-encodes a stored result as a PNG QR code so it can be
// shown on screen and scanned by another device.
func QRCodeHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := lookupResult(manager, logger, w, r)
		if rec == nil {
			return
		}

		size := atoiDefault(r.URL.Query().Get("size"), defaultQRSize)
		if size > maxQRSize {
			size = maxQRSize
		}

		png, err := qrcode.Encode(rec.Content, qrcode.Medium, size)
		if err != nil {
			logger.Warning("Cannot encode result %d as QR code: %v", rec.ID, err)
			http.Error(w, "Content cannot be encoded as a QR code", http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	}
}
