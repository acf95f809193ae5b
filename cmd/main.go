package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"backend-eval/evaluator"
	"backend-eval/infrastructure"
	"backend-eval/interfaces"
)

func main() {
	// Load .env
	_ = godotenv.Load()

	log := infrastructure.NewLogger()
	cfg := infrastructure.LoadConfig()

	if cfg.APIKey == "" {
		log.Fatal("OPENROUTER_API_KEY is not set in environment")
	}
	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN is not set in environment")
	}

	db, err := infrastructure.OpenMySQL(cfg.DBDSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	store := infrastructure.NewGormStore(db)

	client := infrastructure.NewOpenRouterClient(cfg.APIKey, cfg.ChatURL, log)
	extractor := infrastructure.NewFileExtractor(log)

	// The dispatcher is wired before the service, the consumer after: tasks
	// must not arrive until the service exists.
	var svc *evaluator.Service
	handler := func(task evaluator.Task) {
		svc.ProcessTask(context.Background(), task)
	}

	var queue evaluator.Dispatcher
	var startConsuming func()
	if cfg.RabbitURL != "" {
		rmq, err := infrastructure.NewRabbitMQ(cfg.RabbitURL, log)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		defer rmq.Close()
		queue = rmq
		startConsuming = func() {
			if err := rmq.Consume(cfg.WorkerCount, handler); err != nil {
				log.Fatalf("rabbitmq consumer: %v", err)
			}
		}
	} else {
		local := infrastructure.NewLocalQueue(64, log)
		defer local.Stop()
		queue = local
		startConsuming = func() { local.Start(cfg.WorkerCount, handler) }
	}

	svc = evaluator.NewService(store, client, extractor, queue, cfg.JobDesc, log)
	startConsuming()

	router := gin.Default()
	interfaces.NewHTTPHandler(router, svc, cfg.Model, cfg.UploadDir)

	log.Infof("🚀 Server running on http://localhost:%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
