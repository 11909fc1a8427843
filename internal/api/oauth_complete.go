package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/andyleap/donna/internal/apperr"
	"github.com/andyleap/donna/internal/models"
)

// CallbackHandler completes the handshake when the provider redirects back.
// GET /auth_callback?state=...&code=...
func (oh *OAuthHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := models.CallbackParams{
		State: q.Get("state"),
		Code:  q.Get("code"),
		Error: q.Get("error"),
	}
	if c, err := r.Cookie(stateCookie); err == nil {
		params.ExpectedState = c.Value
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Path:     "/auth_callback",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	})

	if _, err := oh.handshake.Complete(r.Context(), params); err != nil {
		slog.Error("Authorization callback failed", "error", err)
		oh.pages.RenderError(w, statusFor(err), "Authorization Failed", callbackMessage(err))
		return
	}

	oh.pages.RenderSuccess(w)
}

func callbackMessage(err error) string {
	var denied *apperr.DeniedError
	switch {
	case errors.As(err, &denied):
		return "Authorization was not granted: " + denied.Reason
	case errors.Is(err, apperr.ErrInvalidState):
		return "Invalid or expired state parameter."
	case errors.Is(err, apperr.ErrMissingCode):
		return "Missing authorization code."
	case errors.Is(err, apperr.ErrStorage):
		return "Failed to save calendar connection."
	default:
		return "Could not complete the calendar connection."
	}
}
