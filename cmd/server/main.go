package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"sputnik/internal/config"
	"sputnik/internal/jobs"
	"sputnik/internal/logging"
	"sputnik/internal/preflight"
	"sputnik/internal/services"
	"sputnik/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Sputnik assistant bot...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Store: %s)", cfg.Port, cfg.StoreBackend)

	// Pre-flight checks before touching the network
	checker := preflight.NewChecker(cfg)
	if preflight.HasFailures(checker.RunAll()) {
		log.Fatal("❌ Pre-flight checks failed, refusing to start")
	}

	// Durable state
	var st store.Store
	var err error
	switch cfg.StoreBackend {
	case "sqlite":
		st, err = store.NewSQLiteStore(cfg.MemoryFile)
	default:
		st, err = store.NewFileStore(cfg.MemoryFile)
	}
	if err != nil {
		log.Fatalf("❌ Failed to open state store: %v", err)
	}
	defer st.Close()

	services.InitMetrics()

	// Services
	telegramService := services.NewTelegramService(cfg.TelegramBotToken)
	llmService := services.NewLLMService(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)

	var assistantService *services.AssistantService
	reminderService, err := services.NewReminderService(st, func(ctx context.Context, userID, text string) {
		assistantService.DeliverReminder(ctx, userID, text)
	})
	if err != nil {
		log.Fatalf("❌ Failed to create reminder scheduler: %v", err)
	}

	assistantService = services.NewAssistantService(st, llmService, reminderService, telegramService, cfg.HistoryWindow)
	telegramService.SetMessageHandler(assistantService.HandleMessage)

	// Optional persona file with hot reload
	if cfg.PersonaFile != "" {
		loadPersona(cfg.PersonaFile, assistantService)
		go startPersonaFileWatcher(cfg.PersonaFile, assistantService)
	}

	// Validate the bot token before going live
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	username, err := telegramService.GetMe(ctx)
	cancel()
	if err != nil {
		log.Fatalf("❌ Telegram token validation failed: %v", err)
	}
	log.Printf("🤖 Bot authenticated as @%s", username)

	// Restore stored reminders before accepting live traffic, so a restored
	// trigger and a freshly scheduled one cannot collide
	if err := reminderService.Start(); err != nil {
		log.Fatalf("❌ Failed to start reminder scheduler: %v", err)
	}

	telegramService.StartPolling()

	// Maintenance jobs
	jobRunner := jobs.NewRunner()
	if cfg.ReminderRetentionDays > 0 {
		retentionJob, err := jobs.NewReminderRetentionJob(st, cfg.ReminderRetentionDays, cfg.RetentionCron)
		if err != nil {
			log.Fatalf("❌ Failed to create retention job: %v", err)
		}
		jobRunner.Register("reminder-retention", retentionJob)
	}
	jobRunner.Start()

	// Fiber app for health and metrics
	app := fiber.New(fiber.Config{
		AppName:               "Sputnik v1.0",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("sputnik")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":            "ok",
			"bot":               username,
			"pending_reminders": reminderService.PendingCount(),
		})
	})

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down...")

		telegramService.Stop()
		jobRunner.Stop()
		reminderService.Stop()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// loadPersona replaces the system prompt with the persona file's contents.
func loadPersona(path string, assistant *services.AssistantService) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("⚠️  Failed to read persona file %s: %v", path, err)
		return
	}
	assistant.SetSystemPrompt(string(data))
	log.Printf("✅ Persona loaded from %s", path)
}

// startPersonaFileWatcher watches the persona file and hot-reloads the system
// prompt on change.
func startPersonaFileWatcher(filePath string, assistant *services.AssistantService) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory containing the file (more reliable than watching the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					log.Printf("🔄 Detected changes in %s, reloading persona...", filePath)
					loadPersona(filePath, assistant)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
