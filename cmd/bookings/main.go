package main

import (
	"roombooking/internal/bookings/events"
	"roombooking/internal/bookings/handler"
	"roombooking/internal/bookings/repository"
	"roombooking/internal/bookings/service"
	"roombooking/internal/bookings/validator"
	roomhandler "roombooking/internal/rooms/handler"
	roomrepository "roombooking/internal/rooms/repository"
	roomservice "roombooking/internal/rooms/service"
	roomvalidator "roombooking/internal/rooms/validator"
	"roombooking/pkg/app"
	"roombooking/pkg/config"
	"roombooking/pkg/contracts"
	"roombooking/pkg/kafka"
	kafka_config "roombooking/pkg/kafka/config"
	kafka_middleware "roombooking/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Bookings service", "storage", cfg.StorageBackend)

	serverApp := app.NewApplication(cfg)
	publisher := initPublisher(cfg, serverApp)

	if cfg.UsesMongo() {
		cfg.SetMongo()
		bookingService := service.NewBookingService(
			repository.NewMongoBookingRepository(cfg),
			repository.NewMongoResourceLockRepository(cfg),
			roomrepository.NewMongoRoomRepository(cfg),
			publisher,
			validator.NewBookingValidator(cfg.Log),
			cfg,
		)
		serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	} else {
		// Without a shared database the rooms catalogue has to live in this
		// process, so both route groups are served here.
		roomRepo := roomrepository.NewMemoryRoomRepository()
		bookingService := service.NewBookingService(
			repository.NewMemoryBookingRepository(),
			repository.NewMemoryResourceLockRepository(),
			roomRepo,
			publisher,
			validator.NewBookingValidator(cfg.Log),
			cfg,
		)
		roomService := roomservice.NewRoomService(roomRepo, roomvalidator.NewRoomValidator(cfg.Log), cfg)
		serverApp.SetApp(contracts.Handlers{
			handler.NewBookingHandler(bookingService, cfg.Log),
			roomhandler.NewRoomHandler(roomService, cfg.Log),
		})
	}

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	serverApp.Run()
}

func initPublisher(cfg *config.Config, serverApp *app.Application) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, lifecycle events are not published")
		return events.NoopPublisher{}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Failed to load Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, "", cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})
	return events.NewKafkaPublisher(producer, ServiceName)
}
