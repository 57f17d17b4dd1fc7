package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"comchat-backend/internal/apperrors"
	"comchat-backend/internal/auth"
	"comchat-backend/internal/presence"
	"comchat-backend/internal/relay"
	"comchat-backend/internal/repository"
	"comchat-backend/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Handler gerencia as dependências para os handlers HTTP
type Handler struct {
	userService         *service.UserService
	conversationService *service.ConversationService
	contactService      *service.ContactService
	messageRelay        *relay.Relay
	presenceTracker     *presence.Tracker
	tokenService        *auth.TokenService
	userStore           repository.UserStore // Necessário para o middleware resolver o chamador
	validate            *validator.Validate
}

// NewHandler cria uma nova instância do Handler
func NewHandler(
	userSvc *service.UserService,
	conversationSvc *service.ConversationService,
	contactSvc *service.ContactService,
	messageRelay *relay.Relay,
	presenceTracker *presence.Tracker,
	tokenSvc *auth.TokenService,
	userStore repository.UserStore,
) *Handler {
	return &Handler{
		userService:         userSvc,
		conversationService: conversationSvc,
		contactService:      contactSvc,
		messageRelay:        messageRelay,
		presenceTracker:     presenceTracker,
		tokenService:        tokenSvc,
		userStore:           userStore,
		validate:            validator.New(),
	}
}

// === Funções Auxiliares de Resposta ===

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Erro ao serializar JSON: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"Erro interno ao serializar resposta"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithAppError mapeia a taxonomia de erros para status HTTP.
// Violações de integridade (participante/chave ausente) viram erro
// genérico de servidor — o detalhe fica só no log.
func (h *Handler) respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch appErr.Code {
	case apperrors.CodeAuthenticationFailed:
		h.respondWithError(w, http.StatusUnauthorized, appErr.Message)
	case apperrors.CodeNotFound:
		h.respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.CodeInvalidTarget,
		apperrors.CodeAlreadyContacts,
		apperrors.CodeRequestAlreadySent,
		apperrors.CodeReciprocalPending:
		h.respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.CodeAlreadyExists:
		h.respondWithError(w, http.StatusConflict, appErr.Message)
	case apperrors.CodeParticipantNotFound, apperrors.CodeKeyNotFound:
		log.Printf("Erro de integridade de dados: %v", err)
		h.respondWithError(w, http.StatusInternalServerError, "Erro interno do servidor")
	default:
		h.respondWithError(w, http.StatusInternalServerError, "Erro interno do servidor")
	}
}

// === Handlers de Identidade ===

// handleRegister (POST /sign)
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username            string `json:"username" validate:"required"`
		Password            string `json:"password" validate:"required,min=8"`
		PublicKey           string `json:"publicKey" validate:"required"`
		EncryptedPrivateKey string `json:"encryptedPrivateKey" validate:"required"`
		IV                  string `json:"iv" validate:"required"`
		Salt                string `json:"salt" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Payload JSON inválido")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Dados inválidos: "+err.Error())
		return
	}

	user, err := h.userService.Register(r.Context(), service.RegisterParams{
		Username:            req.Username,
		Password:            req.Password,
		PublicKey:           req.PublicKey,
		EncryptedPrivateKey: req.EncryptedPrivateKey,
		IV:                  req.IV,
		Salt:                req.Salt,
	})
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}

	token, err := h.tokenService.NewToken(user.ID)
	if err != nil {
		log.Printf("Erro ao gerar token no registro: %v", err)
		h.respondWithError(w, http.StatusInternalServerError, "Erro interno ao gerar token")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]string{
		"token":   token,
		"message": "Usuário criado com sucesso.",
	})
}

// handleLogin (POST /login)
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Payload JSON inválido")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Dados inválidos: "+err.Error())
		return
	}

	result, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// UserSummary é a projeção pública de um usuário em listagens
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// handleSearchUsers (GET /users?search=)
func (h *Handler) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.SearchUsers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := make([]UserSummary, 0, len(users))
	for _, u := range users {
		response = append(response, UserSummary{ID: u.ID, Username: u.Username})
	}
	h.respondWithJSON(w, http.StatusOK, response)
}

// === Handlers de Contato ===

// handleContactRequest (POST /contacts/request)
func (h *Handler) handleContactRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	var req struct {
		ToUserID string `json:"toUserId" validate:"required,uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Payload JSON inválido")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Dados inválidos: "+err.Error())
		return
	}

	toID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "toUserId inválido")
		return
	}

	if _, err := h.contactService.Request(r.Context(), user.ID, toID); err != nil {
		h.respondWithAppError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]string{"message": "Pedido enviado"})
}

// handleIncomingRequests (GET /contacts/requests)
func (h *Handler) handleIncomingRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	reqs, err := h.contactService.IncomingPending(r.Context(), user.ID)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type item struct {
		ID        uuid.UUID   `json:"id"`
		FromUser  UserSummary `json:"fromUser"`
		CreatedAt time.Time   `json:"createdAt"`
	}
	response := make([]item, 0, len(reqs))
	for _, req := range reqs {
		response = append(response, item{
			ID:        req.ID,
			FromUser:  UserSummary{ID: req.FromUser.ID, Username: req.FromUser.Username},
			CreatedAt: req.CreatedAt,
		})
	}
	h.respondWithJSON(w, http.StatusOK, response)
}

// handleAcceptRequest (POST /contacts/requests/{id}/accept)
func (h *Handler) handleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.contactService.Accept, "Aceito")
}

// handleRejectRequest (POST /contacts/requests/{id}/reject)
func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.contactService.Reject, "Rejeitado")
}

func (h *Handler) resolveRequest(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, requestID, actingAs uuid.UUID) error,
	message string,
) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "ID de pedido inválido")
		return
	}

	if err := action(r.Context(), requestID, user.ID); err != nil {
		h.respondWithAppError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}

// handleContacts (GET /contacts)
func (h *Handler) handleContacts(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	contacts, err := h.contactService.Contacts(r.Context(), user.ID)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := make([]UserSummary, 0, len(contacts))
	for _, c := range contacts {
		response = append(response, UserSummary{ID: c.ID, Username: c.Username})
	}
	h.respondWithJSON(w, http.StatusOK, response)
}

// handleSentRequests (GET /contacts/sent)
func (h *Handler) handleSentRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	targets, err := h.contactService.OutgoingPendingTargets(r.Context(), user.ID)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondWithJSON(w, http.StatusOK, targets)
}

// === Handlers de Conversa ===

// handleGetOrCreateConversation (POST /conversations)
func (h *Handler) handleGetOrCreateConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	var req struct {
		ReceiverID string `json:"receiverId" validate:"required,uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Payload JSON inválido")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Dados inválidos: "+err.Error())
		return
	}

	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "receiverId inválido")
		return
	}

	result, err := h.conversationService.GetOrCreate(r.Context(), user.ID, receiverID)
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}

	// O servidor assina o tópico da conversa para que mensagens
	// publicadas direto no broker também alcancem o caminho durável
	if err := h.messageRelay.Subscribe(r.Context(), result.Topic); err != nil {
		log.Printf("Aviso: falha ao assinar tópico %s: %v", result.Topic, err)
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// handleListConversations (GET /conversations)
func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	summaries, err := h.conversationService.List(r.Context(), user.ID)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type item struct {
		ID               uuid.UUID    `json:"id"`
		Topic            string       `json:"topic"`
		OtherParticipant *UserSummary `json:"otherParticipant"`
	}
	response := make([]item, 0, len(summaries))
	for _, s := range summaries {
		it := item{ID: s.ID, Topic: s.Topic}
		if s.OtherParticipant != nil {
			it.OtherParticipant = &UserSummary{ID: s.OtherParticipant.ID, Username: s.OtherParticipant.Username}
		}
		response = append(response, it)
	}
	h.respondWithJSON(w, http.StatusOK, response)
}

// === Handlers de Mensagem ===

// handleSendMessage (POST /messages)
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	var req struct {
		ConversationID   string `json:"conversationId" validate:"required,uuid"`
		EncryptedMessage string `json:"encryptedMessage" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Payload JSON inválido")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Dados inválidos: "+err.Error())
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "conversationId inválido")
		return
	}

	msg, err := h.messageRelay.Send(r.Context(), conversationID, user.ID, req.EncryptedMessage)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusCreated, msg)
}

// handleGetMessages (GET /messages/{conversationId})
func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationId"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "conversationId inválido")
		return
	}

	msgs, err := h.messageRelay.History(r.Context(), conversationID, user.ID)
	if err != nil {
		h.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, msgs)
}

// === Handlers de Presença ===

// handleHeartbeat (POST /presence/heartbeat)
func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	h.presenceTracker.Heartbeat(user.ID)
	w.WriteHeader(http.StatusOK)
}

// handleOnlineUsers (GET /presence/online)
func (h *Handler) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := userFromContext(r.Context()); !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Contexto de usuário inválido")
		return
	}

	h.respondWithJSON(w, http.StatusOK, h.presenceTracker.Online(time.Now()))
}
