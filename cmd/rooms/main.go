package main

import (
	"roombooking/internal/rooms/handler"
	"roombooking/internal/rooms/repository"
	"roombooking/internal/rooms/service"
	"roombooking/internal/rooms/validator"
	"roombooking/pkg/app"
	"roombooking/pkg/config"
)

const ServiceName = "rooms"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Rooms service", "storage", cfg.StorageBackend)

	var repo repository.RoomRepository
	if cfg.UsesMongo() {
		cfg.SetMongo()
		repo = repository.NewMongoRoomRepository(cfg)
	} else {
		repo = repository.NewMemoryRoomRepository()
	}

	roomService := service.NewRoomService(repo, validator.NewRoomValidator(cfg.Log), cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewRoomHandler(roomService, cfg.Log))
	serverApp.Run()
}
