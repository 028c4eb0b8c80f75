package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rias-glitch/casino-backend/internal/bot"
	"github.com/rias-glitch/casino-backend/internal/config"
	"github.com/rias-glitch/casino-backend/internal/db"
	"github.com/rias-glitch/casino-backend/internal/goroutine"
	httpHandlers "github.com/rias-glitch/casino-backend/internal/http/handlers"
	httpRouter "github.com/rias-glitch/casino-backend/internal/http/router"
	"github.com/rias-glitch/casino-backend/internal/logger"
	"github.com/rias-glitch/casino-backend/internal/random"
	"github.com/rias-glitch/casino-backend/internal/repository"
	"github.com/rias-glitch/casino-backend/internal/service"
	"github.com/rias-glitch/casino-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Redis для эфемерных комнат.
	redisClient, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("main: ошибка подключения к Redis: %v", err)
	}
	defer redisClient.Close()

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	transactionRepo := repository.NewTransactionRepository(dbConn)
	roomRepo := repository.NewRoomRepository(redisClient, cfg.RoomTTL)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL)
	userService := service.NewUserService(userRepo, transactionRepo)
	authService := service.NewAuthService(userService, tokenManager, cfg.BotToken)
	gameService := service.NewGameService(userRepo)

	disputeService := service.NewDisputeService(disputeRepo, userRepo, random.NewCryptoSource(), nil, cfg.CommissionPercent, cfg.VotingWindow)

	// Уведомления собираем по доступным каналам; Telegram добавляется после
	// создания бота, которому нужен уже готовый движок споров.
	wsNotifier := ws.NewNotifier(hub)
	notifiers := []service.Notifier{wsNotifier}

	var playerBot *bot.Bot
	if cfg.BotToken != "" {
		playerBot, err = bot.New(cfg.BotToken, userService, disputeService, cfg.WebAppURL)
		if err != nil {
			log.Fatalf("main: не удалось запустить бота: %v", err)
		}
		notifiers = append(notifiers, playerBot)
	}
	disputeService.SetNotifier(service.NewMultiNotifier(notifiers...))

	roomService := service.NewRoomService(roomRepo, disputeService, wsNotifier, cfg.FlipDelay)

	// Боты.
	if playerBot != nil {
		goroutine.SafeGo(playerBot.Start)
		defer playerBot.Stop()
	}
	if cfg.AdminBotToken != "" && len(cfg.AdminIDs) > 0 {
		adminBot, err := bot.NewAdminBot(cfg.AdminBotToken, userService, disputeRepo, transactionRepo, cfg.AdminIDs)
		if err != nil {
			log.Fatalf("main: не удалось запустить админ-бота: %v", err)
		}
		goroutine.SafeGo(adminBot.Start)
		defer adminBot.Stop()
	}

	// Периодическая зачистка просроченных голосований.
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if resolved, err := disputeService.CheckExpiredVotings(ctx); err != nil {
					logger.Log.WithError(err).Error("main: зачистка голосований завершилась с ошибкой")
				} else if resolved > 0 {
					logger.Log.Infof("main: финализировано голосований: %d", resolved)
				}
			}
		}
	})

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	userHandler := httpHandlers.NewUserHandler(userService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	roomHandler := httpHandlers.NewRoomHandler(roomService)
	gameHandler := httpHandlers.NewGameHandler(gameService)
	wsHandler := httpHandlers.NewWSHandler(hub, authService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, redisClient)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, userHandler, disputeHandler, roomHandler, gameHandler, wsHandler, healthHandler, authService)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
