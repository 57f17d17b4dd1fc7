package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"comchat-backend/internal/apperrors"
	"comchat-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore é a implementação da interface Store para o PostgreSQL
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore cria uma nova instância do PostgresStore e pool de conexões
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("não foi possível criar pool de conexão: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("não foi possível pingar o banco de dados: %w", err)
	}

	log.Println("Pool de conexão com PostgreSQL estabelecido.")
	return &PostgresStore{db: pool}, nil
}

// Close fecha o pool de conexões
func (s *PostgresStore) Close() {
	s.db.Close()
}

// RunMigrations executa o script SQL de migração
func (s *PostgresStore) RunMigrations(ctx context.Context, migrationSQL string) error {
	_, err := s.db.Exec(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("falha ao executar migração: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // 23505 = unique_violation
}

// --- UserStore ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	sql := `
        INSERT INTO users (id, username, password_hash, public_key, encrypted_private_key, iv, salt, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.Exec(ctx, sql,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.PublicKey,
		user.EncryptedPrivateKey,
		user.IV,
		user.Salt,
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrUserExists
		}
		return fmt.Errorf("falha ao criar usuário: %w", err)
	}
	return nil
}

const userColumns = `id, username, password_hash, public_key, encrypted_private_key, iv, salt, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.PublicKey,
		&user.EncryptedPrivateKey,
		&user.IV,
		&user.Salt,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(s.db.QueryRow(ctx, sql, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("falha ao buscar usuário por nome: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("falha ao buscar usuário por ID: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) SearchUsers(ctx context.Context, query string) ([]*models.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE username ILIKE '%' || $1 || '%' ORDER BY username`

	rows, err := s.db.Query(ctx, sql, query)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar usuários: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func (s *PostgresStore) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`

	rows, err := s.db.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar usuários por IDs: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]*models.User, error) {
	// Inicializa como slice vazio para consistência de JSON
	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao escanear linha de usuário: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar sobre os usuários: %w", err)
	}
	return users, nil
}

// --- ConversationStore ---

// CreateConversation insere a conversa e as duas chaves embrulhadas na
// mesma transação. A corrida de primeira-criação é resolvida pela
// constraint UNIQUE sobre pair_key: o perdedor recebe
// apperrors.ErrConversationExists e relê o registro do vencedor.
func (s *PostgresStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("falha ao abrir transação: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := `
        INSERT INTO conversations (id, participant_a, participant_b, pair_key, topic, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, sql,
		conv.ID,
		conv.Participants[0],
		conv.Participants[1],
		conv.PairKey,
		conv.Topic,
		conv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConversationExists
		}
		return fmt.Errorf("falha ao criar conversa: %w", err)
	}

	keySQL := `INSERT INTO conversation_keys (conversation_id, user_id, wrapped_key) VALUES ($1, $2, $3)`
	for userID, wrapped := range conv.Keys {
		uid, err := uuid.Parse(userID)
		if err != nil {
			return fmt.Errorf("chave embrulhada com user_id inválido '%s': %w", userID, err)
		}
		if _, err := tx.Exec(ctx, keySQL, conv.ID, uid, wrapped); err != nil {
			return fmt.Errorf("falha ao salvar chave embrulhada: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConversationExists
		}
		return fmt.Errorf("falha ao confirmar transação: %w", err)
	}
	return nil
}

func (s *PostgresStore) getConversation(ctx context.Context, where string, arg any) (*models.Conversation, error) {
	sql := `
        SELECT id, participant_a, participant_b, pair_key, topic, created_at
        FROM conversations WHERE ` + where

	conv := &models.Conversation{}
	var pa, pb uuid.UUID
	err := s.db.QueryRow(ctx, sql, arg).Scan(
		&conv.ID,
		&pa,
		&pb,
		&conv.PairKey,
		&conv.Topic,
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("falha ao buscar conversa: %w", err)
	}
	conv.Participants = []uuid.UUID{pa, pb}

	if err := s.loadConversationKeys(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *PostgresStore) loadConversationKeys(ctx context.Context, conv *models.Conversation) error {
	rows, err := s.db.Query(ctx,
		`SELECT user_id, wrapped_key FROM conversation_keys WHERE conversation_id = $1`, conv.ID)
	if err != nil {
		return fmt.Errorf("falha ao buscar chaves da conversa: %w", err)
	}
	defer rows.Close()

	conv.Keys = make(map[string]string)
	for rows.Next() {
		var uid uuid.UUID
		var wrapped string
		if err := rows.Scan(&uid, &wrapped); err != nil {
			return fmt.Errorf("falha ao escanear chave da conversa: %w", err)
		}
		conv.Keys[uid.String()] = wrapped
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("erro ao iterar sobre as chaves da conversa: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversationByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error) {
	return s.getConversation(ctx, `pair_key = $1`, pairKey)
}

func (s *PostgresStore) GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return s.getConversation(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetConversationsByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	sql := `
        SELECT id, participant_a, participant_b, pair_key, topic, created_at
        FROM conversations
        WHERE participant_a = $1 OR participant_b = $1
        ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar conversas: %w", err)
	}
	defer rows.Close()

	convs := []*models.Conversation{}
	for rows.Next() {
		conv := &models.Conversation{}
		var pa, pb uuid.UUID
		err := rows.Scan(&conv.ID, &pa, &pb, &conv.PairKey, &conv.Topic, &conv.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("falha ao escanear linha de conversa: %w", err)
		}
		conv.Participants = []uuid.UUID{pa, pb}
		convs = append(convs, conv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar sobre as conversas: %w", err)
	}

	for _, conv := range convs {
		if err := s.loadConversationKeys(ctx, conv); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

// --- MessageStore ---

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	sql := `
        INSERT INTO messages (id, conversation_id, sender_id, encrypted_message, created_at)
        VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.Exec(ctx, sql,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.EncryptedMessage,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("falha ao criar mensagem: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMessagesByConversationID(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	sql := `
        SELECT id, conversation_id, sender_id, encrypted_message, created_at
        FROM messages
        WHERE conversation_id = $1
        ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, sql, conversationID)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar mensagens: %w", err)
	}
	defer rows.Close()

	msgs := []*models.Message{}
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.EncryptedMessage, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("falha ao escanear linha de mensagem: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar sobre as mensagens: %w", err)
	}
	return msgs, nil
}

// --- ContactRequestStore ---

const requestColumns = `id, from_user, to_user, status, created_at`

func scanRequest(row pgx.Row) (*models.ContactRequest, error) {
	req := &models.ContactRequest{}
	err := row.Scan(&req.ID, &req.FromUser, &req.ToUser, &req.Status, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *PostgresStore) CreateContactRequest(ctx context.Context, req *models.ContactRequest) error {
	sql := `
        INSERT INTO contact_requests (id, from_user, to_user, status, created_at)
        VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.Exec(ctx, sql, req.ID, req.FromUser, req.ToUser, req.Status, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("falha ao criar pedido de contato: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetContactRequestByID(ctx context.Context, id uuid.UUID) (*models.ContactRequest, error) {
	sql := `SELECT ` + requestColumns + ` FROM contact_requests WHERE id = $1`

	req, err := scanRequest(s.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("falha ao buscar pedido de contato: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) FindContactRequest(ctx context.Context, from, to uuid.UUID, status string) (*models.ContactRequest, error) {
	sql := `SELECT ` + requestColumns + ` FROM contact_requests WHERE from_user = $1 AND to_user = $2 AND status = $3`

	req, err := scanRequest(s.db.QueryRow(ctx, sql, from, to, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("falha ao buscar pedido de contato: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) UpdateContactRequest(ctx context.Context, req *models.ContactRequest) error {
	sql := `UPDATE contact_requests SET status = $2, created_at = $3 WHERE id = $1`

	tag, err := s.db.Exec(ctx, sql, req.ID, req.Status, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("falha ao atualizar pedido de contato: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) listRequests(ctx context.Context, where string, arg any) ([]*models.ContactRequest, error) {
	sql := `SELECT ` + requestColumns + ` FROM contact_requests WHERE ` + where + ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar pedidos de contato: %w", err)
	}
	defer rows.Close()

	reqs := []*models.ContactRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao escanear pedido de contato: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar sobre os pedidos: %w", err)
	}
	return reqs, nil
}

func (s *PostgresStore) ListPendingForUser(ctx context.Context, to uuid.UUID) ([]*models.ContactRequest, error) {
	return s.listRequests(ctx, `to_user = $1 AND status = 'pending'`, to)
}

func (s *PostgresStore) ListPendingFromUser(ctx context.Context, from uuid.UUID) ([]*models.ContactRequest, error) {
	return s.listRequests(ctx, `from_user = $1 AND status = 'pending'`, from)
}

func (s *PostgresStore) ListAcceptedInvolving(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error) {
	return s.listRequests(ctx, `(from_user = $1 OR to_user = $1) AND status = 'accepted'`, userID)
}
