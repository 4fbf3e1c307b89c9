package main

import (
	"log"

	"github.com/mapmyfamily/familyapi/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		theApp.Close()
		log.Fatalf("server stopped: %v", err)
	}
}
