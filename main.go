package main

import (
	"evalo-backend/internal/config"
	"evalo-backend/internal/server"
	"log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	srv := server.New(cfg)
	if err := srv.Initialize(); err != nil {
		srv.Echo.Logger.Fatal(err)
	}

	srv.Echo.Logger.Fatal(srv.Start())
}
