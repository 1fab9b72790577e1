package main

import (
	"flag"
	"log"

	"github.com/anvndev/go-distributed-search/internal/node/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file")
	flag.Parse()

	application, err := app.New(configPath)
	if err != nil {
		log.Fatalf("Failed to initialize search node: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Search node failed: %v", err)
	}
}
