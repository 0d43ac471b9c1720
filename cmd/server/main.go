package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/api/handlers"
	"github.com/postloom/postloom/internal/api/middleware"
	job "github.com/postloom/postloom/internal/jobs"
	"github.com/postloom/postloom/internal/queue"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "something went wrong"})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Api-Key",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	platformRepo := repository.NewPlatformRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	signatureRepo := repository.NewSignatureRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	scheduler := queue.NewScheduler(client, inspector, cfg.PublishMaxRetry, cfg.NotifyMaxRetry)

	lateService := service.NewLateService(*cfg)
	emailService := service.NewEmailService(*cfg)
	mediaService := service.NewMediaService(*cfg)
	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	postService := service.NewPostService(postRepo, platformRepo, scheduler)
	platformService := service.NewPlatformService(*cfg, platformRepo, lateService)
	settingsService := service.NewSettingsService(settingsRepo)
	signatureService := service.NewSignatureService(signatureRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	settings := handlers.NewSettingsHandler(settingsService)
	api.Get("/settings/info", settings.GetSettingsInfo)
	api.Post("/settings/update", settings.UpdateSettings)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/schedule", post.SchedulePost)
	api.Post("/posts/draft", post.SaveDraft)
	api.Post("/posts/check", post.CheckRules)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)

	platform := handlers.NewPlatformHandler(platformService)
	api.Get("/platforms/connect/:platform", platform.ConnectPlatform)
	api.Get("/platforms/connect/:platform/callback", platform.ConnectCallback)
	api.Get("/platforms", platform.ListPlatforms)
	api.Post("/platforms/remove", platform.DisconnectPlatform)

	signature := handlers.NewSignatureHandler(signatureService)
	api.Post("/signatures/new", signature.CreateSignature)
	api.Get("/signatures", signature.ListSignatures)
	api.Post("/signatures/update", signature.UpdateSignature)
	api.Post("/signatures/default", signature.SetDefaultSignature)
	api.Post("/signatures/remove", signature.RemoveSignature)

	media := handlers.NewMediaHandler(mediaService)
	api.Get("/media/presign", media.PresignUpload)
	api.Post("/media/upload", media.Upload)

	// cron jobs
	reconcileJob := job.NewReconcileJob(postRepo, scheduler)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", reconcileJob.ReconcileScheduled)
	c.Start()

	worker := queue.NewWorker(*cfg, postRepo, platformRepo, userRepo, settingsRepo, lateService, emailService, scheduler)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, worker.HandlePublishPost)
		mux.HandleFunc(queue.TaskTypePublishFailed, worker.HandlePublishFailed)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
