package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"cinema-reservation/internal/config"
	"cinema-reservation/internal/database"
	"cinema-reservation/internal/handler"
	"cinema-reservation/internal/queue"
	"cinema-reservation/internal/repository"
	"cinema-reservation/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and response cache disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	movies := repository.NewMovieRepo(db)
	rooms := repository.NewRoomRepo(db)
	schedules := repository.NewScheduleRepo(db)
	reservations := repository.NewReservationRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	browseH := handler.NewBrowseHandler(movies, rooms, schedules, reservations)
	adminH := handler.NewAdminHandler(movies, rooms, schedules, reservations)
	reservationH := handler.NewReservationHandler(reservations)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e, browseH, rdb)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterReservations(e, reservationH, cfg.JWTSecret, rdb)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	// Booking confirmations are consumed off RabbitMQ into a log file;
	// the consumer reconnects on its own and never blocks startup.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
