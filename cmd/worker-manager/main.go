// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"casework-workers/internal/common/auth"
	"casework-workers/internal/common/aws"
	"casework-workers/internal/common/camunda"
	"casework-workers/internal/common/config"
	"casework-workers/internal/common/database"
	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/httpclient"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/common/observability"
	"casework-workers/internal/ledger"
	"casework-workers/internal/lifecycle"
	"casework-workers/internal/notify"
	"casework-workers/internal/outbox"
	"casework-workers/internal/placement"
	"casework-workers/internal/readmodel"
	"casework-workers/internal/reconcile"
	"casework-workers/internal/schema"
	"casework-workers/internal/search"

	// Application lifecycle workers (4)
	aba "casework-workers/internal/workers/application/abandon-application"
	cra "casework-workers/internal/workers/application/create-application"
	sub "casework-workers/internal/workers/application/submit-application"
	upd "casework-workers/internal/workers/application/update-application"

	// Event reconciler workers (2)
	alc "casework-workers/internal/workers/events/allocation-changed"
	loc "casework-workers/internal/workers/events/location-changed"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init broker client with retry ---
	var broker *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		broker, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.Timeout),
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Broker client initialization")

	if err != nil {
		zapLog.Fatal("broker client failed after retries", zap.Error(err))
	}
	zapLog.Info("Broker client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init AWS clients ---
	sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
	if err != nil {
		zapLog.Fatal("ses client init failed", zap.Error(err))
	}
	snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
	if err != nil {
		zapLog.Fatal("sns client init failed", zap.Error(err))
	}
	zapLog.Info("All external service clients initialized")

	// --- Assemble domain services ---
	tokens := auth.NewTokenSource(
		cfg.ReadModels.OAuth.BaseURL,
		cfg.ReadModels.OAuth.Realm,
		cfg.ReadModels.OAuth.ClientID,
		cfg.ReadModels.OAuth.ClientSecret,
	)

	persons := readmodel.NewPersonClient(
		httpclient.NewClient(config.GetDuration(cfg.ReadModels.Person.Timeout)),
		cfg.ReadModels.Person.BaseURL, tokens)
	locations := readmodel.NewLocationClient(
		httpclient.NewClient(config.GetDuration(cfg.ReadModels.Location.Timeout)),
		cfg.ReadModels.Location.BaseURL, tokens)
	allocations := readmodel.NewAllocationClient(
		httpclient.NewClient(config.GetDuration(cfg.ReadModels.Allocation.Timeout)), tokens)

	store := lifecycle.NewStore(pg.DB)
	assignments := ledger.New(pg.DB)
	registry := schema.NewRegistry(pg.DB)
	eventOutbox := outbox.New(snsClient, cfg.Integrations.AWS.SNS.TopicARN, log)
	notifier := notify.New(sesClient, cfg.Integrations.AWS.SES.FromEmail, log)
	dependents := placement.NewFactory(pg.DB, log)
	indexer := search.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log)
	submitLock := lifecycle.NewSubmitLock(redis.Client,
		config.GetDuration(cfg.Lifecycle.SubmitLockTTL),
		config.GetDuration(cfg.Lifecycle.SubmitLockTimeout))

	service := lifecycle.NewService(lifecycle.ServiceDeps{
		Store:       store,
		Registry:    registry,
		Subjects:    persons,
		Locations:   locations,
		Assignments: assignments,
		Sanitizer:   lifecycle.NewSanitizer(cfg.Lifecycle.SanitizerRunes),
		Lock:        submitLock,
		Outbox:      eventOutbox,
		Notifier:    notifier,
		Dependents:  dependents,
		Search:      indexer,
		Templates: lifecycle.NotificationTemplates{
			SubmittedTemplateID:    cfg.Integrations.Notifications.SubmittedTemplateID,
			ConfirmationTemplateID: cfg.Integrations.Notifications.ConfirmationTemplateID,
		},
		Logger: log,
	})

	reporter := errors.NewReporter(log)
	allocationReconciler := reconcile.New(
		reconcile.NewAllocationChanged(store, allocations), assignments, reporter, log)
	locationReconciler := reconcile.New(
		reconcile.NewLocationChanged(store, locations), assignments, reporter, log)

	// --- Register workers ---
	var workers []*camunda.Worker

	if cfg.Workers[cra.TaskType].Enabled {
		handler := cra.NewHandler(
			&cra.Config{Timeout: config.GetDuration(cfg.Workers[cra.TaskType].Timeout)},
			service, log,
		)
		workers = append(workers, startWorker(broker, cra.TaskType, cfg.Workers[cra.TaskType], handler, zapLog))
	}

	if cfg.Workers[upd.TaskType].Enabled {
		handler := upd.NewHandler(
			&upd.Config{Timeout: config.GetDuration(cfg.Workers[upd.TaskType].Timeout)},
			service, log,
		)
		workers = append(workers, startWorker(broker, upd.TaskType, cfg.Workers[upd.TaskType], handler, zapLog))
	}

	if cfg.Workers[sub.TaskType].Enabled {
		handler := sub.NewHandler(
			&sub.Config{Timeout: config.GetDuration(cfg.Workers[sub.TaskType].Timeout)},
			service, log,
		)
		workers = append(workers, startWorker(broker, sub.TaskType, cfg.Workers[sub.TaskType], handler, zapLog))
	}

	if cfg.Workers[aba.TaskType].Enabled {
		handler := aba.NewHandler(
			&aba.Config{Timeout: config.GetDuration(cfg.Workers[aba.TaskType].Timeout)},
			service, log,
		)
		workers = append(workers, startWorker(broker, aba.TaskType, cfg.Workers[aba.TaskType], handler, zapLog))
	}

	if cfg.Workers[alc.TaskType].Enabled {
		handler := alc.NewHandler(
			&alc.Config{Timeout: config.GetDuration(cfg.Workers[alc.TaskType].Timeout)},
			allocationReconciler, log,
		)
		workers = append(workers, startWorker(broker, alc.TaskType, cfg.Workers[alc.TaskType], handler, zapLog))
	}

	if cfg.Workers[loc.TaskType].Enabled {
		handler := loc.NewHandler(
			&loc.Config{Timeout: config.GetDuration(cfg.Workers[loc.TaskType].Timeout)},
			locationReconciler, log,
		)
		workers = append(workers, startWorker(broker, loc.TaskType, cfg.Workers[loc.TaskType], handler, zapLog))
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := broker.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := broker.Close(); err != nil {
		zapLog.Error("Error closing broker client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(broker *camunda.Client, taskType string, wcfg config.WorkerConfig, handler camunda.JobHandler, log *zap.Logger) *camunda.Worker {
	w := camunda.NewWorker(
		broker.GetClient(),
		taskType,
		wcfg.MaxJobsActive,
		config.GetDuration(wcfg.Timeout),
		handler,
		log,
	)
	w.Start()
	return w
}
