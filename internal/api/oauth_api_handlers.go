package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/andyleap/donna/internal/models"
	"github.com/andyleap/donna/internal/ui"
)

// stateCookie carries the handshake state in the browser that started it,
// so a callback arriving in any other browser is rejected.
const stateCookie = "donna_oauth_state"

// Handshake is the authorization flow the browser endpoints drive.
type Handshake interface {
	Begin(ctx context.Context, userID int64) (*models.Authorization, error)
	Complete(ctx context.Context, params models.CallbackParams) (*models.Credential, error)
}

type OAuthHandlers struct {
	handshake Handshake
	pages     *ui.Pages
}

func NewOAuthHandlers(handshake Handshake, pages *ui.Pages) *OAuthHandlers {
	return &OAuthHandlers{
		handshake: handshake,
		pages:     pages,
	}
}

// StartAuthHandler redirects the browser to the provider consent screen.
// GET /start_auth?user=123
func (oh *OAuthHandlers) StartAuthHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
	if err != nil {
		oh.pages.RenderError(w, http.StatusBadRequest, "Invalid Request", "Missing or invalid user parameter")
		return
	}

	auth, err := oh.handshake.Begin(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to start authorization", "user_id", userID, "error", err)
		oh.pages.RenderError(w, statusFor(err), "Connection Unavailable", "Calendar connection is not available right now. Please try again later.")
		return
	}

	cookie := &http.Cookie{
		Name:     stateCookie,
		Value:    auth.State,
		Path:     "/auth_callback",
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	}
	if !auth.ExpiresAt.IsZero() {
		cookie.Expires = auth.ExpiresAt
		cookie.MaxAge = int(time.Until(auth.ExpiresAt).Seconds())
	}
	http.SetCookie(w, cookie)
	http.Redirect(w, r, auth.URL, http.StatusFound)
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
