package main

import (
	"log"

	"github.com/railmeter/railmeter/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ railmeter failed to start: %v", err)
	}
}
