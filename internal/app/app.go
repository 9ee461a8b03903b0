package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nftverify/internal/bot"
	"nftverify/internal/config"
	"nftverify/internal/handlers"
	"nftverify/internal/repositories"
	"nftverify/internal/routes"
	"nftverify/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "nftverify/docs"
)

func Run() {
	cfg := config.LoadConfig()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Ошибка подключения к БД: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка закрытия БД: %v", err)
		}
	}()
	if err := repositories.EnsureSchema(context.Background(), db); err != nil {
		log.Fatal("Ошибка инициализации схемы: ", err)
	}

	// === Repos ===
	verifRepo := repositories.NewVerificationRepository(db)

	// === Services ===
	oracle := services.NewNFTChecker(cfg.Chain.RPCURL, cfg.Chain.NFTContract, cfg.Chain.CallTimeout())

	// боту нужен сервис, сервису ролей нужна сессия бота —
	// поэтому роли подставляем после создания бота
	verifService := services.NewVerificationService(verifRepo, oracle, nil)

	discordBot, err := bot.New(cfg.Discord, verifService, cfg.Server.BaseURL)
	if err != nil {
		log.Fatal("Ошибка создания Discord-бота: ", err)
	}
	roleService := services.NewDiscordRoleService(discordBot.Session(), cfg.Discord.GuildID, cfg.Discord.RoleID)
	verifService.Roles = roleService

	scheduler := services.NewScheduler(verifRepo, oracle, roleService, cfg.Scheduler.Delay())

	// === Handlers ===
	verifyHandler := handlers.NewVerifyHandler(verifService)
	healthHandler := handlers.NewHealthHandler(discordBot.Ready)

	// === Gin ===
	router := gin.Default()
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, verifyHandler, healthHandler)

	// === Discord ===
	if err := discordBot.Start(); err != nil {
		log.Fatal("Ошибка подключения к Discord: ", err)
	}
	defer discordBot.Stop()

	// === Scheduler ===
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(cfg.Scheduler.Spec); err != nil {
			log.Fatal("Ошибка запуска планировщика: ", err)
		}
		defer scheduler.Stop()
	}

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: listenAddr, Handler: router}
	go func() {
		log.Printf("Сервер запущен на %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Ошибка запуска сервера: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Получен сигнал остановки, завершаемся...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Ошибка остановки сервера: %v", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
