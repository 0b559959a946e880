package handlers

import (
	"net/http"

	"qrscan/internal/middleware"
)

// LogoutHandler revokes the session token, clears the cookie and redirects to the login page.
func LogoutHandler(auth *middleware.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(middleware.CookieName); err == nil {
			auth.Logout(cookie.Value)
		}

		http.SetCookie(w, &http.Cookie{
			Name:   middleware.CookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})

		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
