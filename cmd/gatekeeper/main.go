package main

import (
	"log"

	"github.com/openagri/gatekeeper/internal/gatekeeper/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize gatekeeper: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("gatekeeper error: %v", err)
	}
}
