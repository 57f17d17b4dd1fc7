package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comchat-backend/internal/api"
	"comchat-backend/internal/auth"
	"comchat-backend/internal/broker"
	"comchat-backend/internal/config"
	"comchat-backend/internal/presence"
	"comchat-backend/internal/relay"
	"comchat-backend/internal/repository"
	"comchat-backend/internal/service"
	"comchat-backend/internal/topic"

	"github.com/joho/godotenv"
)

func main() {
	// Carregar o arquivo .env antes da configuração
	err := godotenv.Load()
	if err != nil {
		log.Printf("Aviso: Não foi possível carregar o arquivo .env: %v. (Usando variáveis de ambiente existentes)", err)
	}

	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("Falha ao carregar configuração: %v", err)
	}

	// Inicializar Camada de Repositório (PostgreSQL)
	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelInit()

	store, err := repository.NewPostgresStore(initCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Falha ao conectar ao banco de dados: %v", err)
	}
	defer store.Close()
	log.Println("Conectado ao PostgreSQL!")

	// Rodar Migrations
	migrationSQL, err := os.ReadFile("./migrations/001_init.sql")
	if err != nil {
		log.Fatalf("Falha ao ler arquivo de migração: %v", err)
	}

	if err := store.RunMigrations(initCtx, string(migrationSQL)); err != nil {
		log.Printf("Aviso ao rodar migrações: %v. (Continuando...)", err)
	} else {
		log.Println("Migrações do banco de dados aplicadas com sucesso.")
	}

	// Inicializar Camada de Autenticação
	tokenService, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("Falha ao iniciar TokenService: %v", err)
	}

	// O segredo de derivação de tópicos é obrigatório: sem ele o
	// servidor não sobe (falha fatal aqui, nunca por requisição)
	deriver, err := topic.NewDeriver(cfg.TopicSecret)
	if err != nil {
		log.Fatalf("Falha ao iniciar derivador de tópicos: %v", err)
	}

	// Transporte pub/sub e relay de mensagens
	msgBroker := broker.NewInMemoryBroker()
	defer msgBroker.Close()
	messageRelay := relay.NewRelay(store, msgBroker)
	defer messageRelay.Close()

	// Presença: tracker injetado + varredura periódica de registros
	// vencidos para limitar memória
	presenceTracker := presence.NewTracker()
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go presenceTracker.Run(sweepCtx, 5*time.Minute)

	// Inicializar Camada de Serviço
	userService := service.NewUserService(store, tokenService)
	conversationService := service.NewConversationService(store, deriver)
	contactService := service.NewContactService(store)

	// Inicializar Camada de API
	handler := api.NewHandler(
		userService,
		conversationService,
		contactService,
		messageRelay,
		presenceTracker,
		tokenService,
		store,
	)

	// Configurar Servidor HTTP
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Iniciar Servidor
	go func() {
		log.Printf("Servidor iniciado em http://localhost:%d", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Erro ao iniciar servidor: %v", err)
		}
	}()

	// Aguardar sinal de interrupção
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Recebido sinal de desligamento, encerrando servidor...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Erro no graceful shutdown: %v", err)
	}
	log.Println("Servidor encerrado.")
}
