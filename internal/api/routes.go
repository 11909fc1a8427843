package api

import "net/http"

// Routes registers every endpoint on mux.
func Routes(mux *http.ServeMux, server *Server, oauthHandlers *OAuthHandlers) {
	// Authorization handshake
	mux.HandleFunc("GET /start_auth", oauthHandlers.StartAuthHandler)
	mux.HandleFunc("GET /auth_callback", oauthHandlers.CallbackHandler)

	mux.HandleFunc("GET /health", server.HealthHandler)

	// Chat API
	mux.HandleFunc("POST /api/v1/users/{userId}", server.RegisterHandler)
	mux.HandleFunc("GET /api/v1/users/{userId}/calendar", server.CalendarStatusHandler)
	mux.HandleFunc("DELETE /api/v1/users/{userId}/calendar", server.DisconnectHandler)
	mux.HandleFunc("GET /api/v1/users/{userId}/events", server.EventsHandler)
	mux.HandleFunc("POST /api/v1/users/{userId}/messages", server.MessageHandler)
}
