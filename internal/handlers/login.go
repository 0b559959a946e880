package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"qrscan/internal/dto"
	"qrscan/internal/logger"
	"qrscan/internal/middleware"
)

// LoginHandler accepts the password as a form field or a JSON body and sets
// the session cookie.
func LoginHandler(auth *middleware.Auth, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		password := r.FormValue("password")
		isJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
		if isJSON {
			var req dto.LoginRequest
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			password = req.Password
		}

		token, ok := auth.Login(password)
		if !ok {
			logger.Warning("Failed login from %s", r.RemoteAddr)
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.CookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		if isJSON {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
