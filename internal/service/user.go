package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"comchat-backend/internal/apperrors"
	"comchat-backend/internal/auth"
	"comchat-backend/internal/models"
	"comchat-backend/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService lida com a lógica de negócios de identidades
type UserService struct {
	store        repository.UserStore
	tokenService *auth.TokenService
}

// NewUserService cria um novo serviço de usuário
func NewUserService(store repository.UserStore, tokenService *auth.TokenService) *UserService {
	return &UserService{
		store:        store,
		tokenService: tokenService,
	}
}

// RegisterParams carrega tudo que o cliente produz no registro: além
// das credenciais, o material de chave selado no próprio cliente
// (o servidor nunca vê a chave privada aberta nem a senha de selagem).
type RegisterParams struct {
	Username            string
	Password            string
	PublicKey           string
	EncryptedPrivateKey string
	IV                  string
	Salt                string
}

// LoginResult devolve, junto com o token, o material selado que o
// cliente precisa para re-derivar sua chave privada na sessão.
type LoginResult struct {
	Token               string `json:"token"`
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	IV                  string `json:"iv"`
	Salt                string `json:"salt"`
}

// Register cria uma nova identidade
func (s *UserService) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	if p.Username == "" || p.Password == "" || p.PublicKey == "" ||
		p.EncryptedPrivateKey == "" || p.IV == "" || p.Salt == "" {
		return nil, fmt.Errorf("todos os campos de registro são obrigatórios")
	}

	// Verificar se usuário já existe
	if _, err := s.store.GetUserByUsername(ctx, p.Username); err == nil {
		return nil, apperrors.ErrUserExists
	}

	// Gerar hash da senha (nunca armazene senha em texto plano)
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Erro ao gerar hash bcrypt: %v", err)
		return nil, fmt.Errorf("erro interno ao processar senha")
	}

	user := &models.User{
		ID:                  uuid.New(),
		Username:            p.Username,
		PasswordHash:        string(hash),
		PublicKey:           p.PublicKey,
		EncryptedPrivateKey: p.EncryptedPrivateKey,
		IV:                  p.IV,
		Salt:                p.Salt,
		CreatedAt:           time.Now(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUserExists) {
			return nil, err
		}
		log.Printf("Erro ao salvar usuário no store: %v", err)
		return nil, fmt.Errorf("erro interno ao salvar usuário")
	}

	return user, nil
}

// Login autentica um usuário e devolve o token JWT junto com o
// material de chave selado
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		// Resposta genérica para evitar enumeração de usuários
		return nil, apperrors.ErrAuthenticationFailed
	}

	// Comparar a senha fornecida com o hash armazenado
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrAuthenticationFailed
	}

	token, err := s.tokenService.NewToken(user.ID)
	if err != nil {
		log.Printf("Erro ao gerar token JWT: %v", err)
		return nil, fmt.Errorf("erro interno ao gerar token")
	}

	return &LoginResult{
		Token:               token,
		PublicKey:           user.PublicKey,
		EncryptedPrivateKey: user.EncryptedPrivateKey,
		IV:                  user.IV,
		Salt:                user.Salt,
	}, nil
}

// SearchUsers busca identidades por substring do username
func (s *UserService) SearchUsers(ctx context.Context, query string) ([]*models.User, error) {
	users, err := s.store.SearchUsers(ctx, query)
	if err != nil {
		log.Printf("Erro ao buscar usuários no store: %v", err)
		return nil, fmt.Errorf("erro interno ao buscar usuários")
	}
	return users, nil
}

// GetUserByID busca um usuário pelo ID
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, apperrors.ErrNotFound
	}
	return user, nil
}
