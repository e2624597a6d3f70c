package main

import (
	"time"

	"roombook/internal/bookings/events"
	"roombook/internal/bookings/guard"
	"roombook/internal/bookings/handler"
	"roombook/internal/bookings/repository"
	"roombook/internal/bookings/service"
	"roombook/internal/bookings/validator"
	"roombook/pkg/app"
	"roombook/pkg/clock"
	"roombook/pkg/config"
	"roombook/pkg/kafka"
	kafka_config "roombook/pkg/kafka/config"
	kafka_middleware "roombook/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Bookings service")

	serverApp := app.NewApplication(cfg)

	repo, locker, pinger := initStore(cfg)
	publisher, eventMetrics, producer := initEvents(cfg)
	if producer != nil {
		serverApp.OnShutdown("kafka_producer", producer)
	}

	bookingService := service.NewBookingService(
		repo,
		guard.New(repo, locker, cfg.Log),
		validator.NewBookingValidator(cfg.Log),
		publisher,
		clock.Real{},
		cfg.Log,
	)
	cfg.Log.Info("Booking service initialized", "store_driver", cfg.StoreDriver, "events_enabled", cfg.EventsEnabled)

	serverApp.SetApp(
		handler.NewBookingHandler(bookingService, cfg.Log),
		handler.NewHealthHandler(pinger, eventMetrics, cfg.Log),
	)
	serverApp.Run()
}

// initStore picks the booking store. With Mongo the in-process key lock is
// chained with an advisory lock so instances sharing a database serialize on
// the same slot.
func initStore(cfg *config.Config) (repository.BookingRepository, guard.Locker, handler.Pinger) {
	if !cfg.UsesMongo() {
		cfg.Log.Warn("Using in-memory booking store; bookings are lost on restart")
		return repository.NewMemoryBookingRepository(), guard.NewKeyedMutex(), nil
	}

	cfg.SetMongo()
	locker := guard.Chain(
		guard.NewKeyedMutex(),
		guard.NewAdvisoryLocker(
			repository.NewBookingLockRepository(cfg),
			cfg.BookingLockTTL,
			cfg.BookingLockMaxWait,
			cfg.Log,
		),
	)
	return repository.NewMongoBookingRepository(cfg), locker, handler.NewMongoPinger(cfg.Client.Mongo)
}

func initEvents(cfg *config.Config) (events.Publisher, *kafka_middleware.Metrics, *kafka.Producer) {
	if !cfg.EventsEnabled {
		return events.NewNoopPublisher(), nil, nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.BookingsTopic, kafkaCfg.BookingsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	var metrics *kafka_middleware.Metrics
	if kafkaCfg.EnableMiddleware {
		metrics = kafka_middleware.NewMetrics()
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(metrics))
	}

	return events.NewKafkaPublisher(producer, ServiceName, time.Now, cfg.Log), metrics, producer
}
