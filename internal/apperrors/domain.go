package apperrors

// Erros de domínio — usados pelos serviços e repositórios.
// As mensagens são as mesmas devolvidas ao cliente pela camada de API.
var (
	// keystore
	ErrAuthenticationFailed = New(CodeAuthenticationFailed, "credenciais inválidas")
	ErrCryptoUnavailable    = New(CodeCryptoUnavailable, "primitiva criptográfica indisponível")
	ErrUnwrapFailed         = New(CodeUnwrapFailed, "falha ao desembrulhar chave simétrica")

	// conversas
	ErrParticipantNotFound = New(CodeParticipantNotFound, "participante não encontrado")
	ErrKeyNotFound         = New(CodeKeyNotFound, "chave embrulhada ausente para o participante")
	ErrConversationExists  = New(CodeAlreadyExists, "conversa já existe para o par")

	// fluxo de contato
	ErrInvalidTarget      = New(CodeInvalidTarget, "usuário de destino inválido")
	ErrAlreadyContacts    = New(CodeAlreadyContacts, "vocês já são contatos")
	ErrRequestAlreadySent = New(CodeRequestAlreadySent, "pedido já enviado")
	ErrReciprocalPending  = New(CodeReciprocalPending, "esse usuário já te enviou um pedido")
	ErrNotFound           = New(CodeNotFound, "registro não encontrado")

	// identidades
	ErrUserExists = New(CodeAlreadyExists, "usuário já existe")
)
