package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config armazena a configuração da aplicação
type Config struct {
	ServerPort  int    `envconfig:"SERVER_PORT" default:"8080"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	// TopicSecret é o segredo do HMAC de derivação de tópicos.
	// Obrigatório: sem ele terceiros poderiam derivar tópicos de pares
	// arbitrários (falha fatal no startup, nunca por chamada).
	TopicSecret string `envconfig:"TOPIC_SECRET" required:"true"`
}

// Load carrega a configuração das variáveis de ambiente
func Load(cfg *Config) error {
	return envconfig.Process("", cfg)
}
