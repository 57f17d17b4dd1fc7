// internal/api/routes.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes configura e retorna o roteador Chi
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middlewares globais
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	// CORS para o frontend local
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:4200"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // Tempo de cache da preflight
	}))

	// Endpoints públicos (sem autenticação)
	r.Post("/sign", h.handleRegister)
	r.Post("/login", h.handleLogin)

	// Endpoints protegidos (requerem autenticação)
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/users", h.handleSearchUsers)

		r.Post("/contacts/request", h.handleContactRequest)
		r.Get("/contacts/requests", h.handleIncomingRequests)
		r.Post("/contacts/requests/{id}/accept", h.handleAcceptRequest)
		r.Post("/contacts/requests/{id}/reject", h.handleRejectRequest)
		r.Get("/contacts", h.handleContacts)
		r.Get("/contacts/sent", h.handleSentRequests)

		r.Post("/conversations", h.handleGetOrCreateConversation)
		r.Get("/conversations", h.handleListConversations)

		r.Post("/messages", h.handleSendMessage)
		r.Get("/messages/{conversationId}", h.handleGetMessages)

		r.Post("/presence/heartbeat", h.handleHeartbeat)
		r.Get("/presence/online", h.handleOnlineUsers)
	})

	return r
}
