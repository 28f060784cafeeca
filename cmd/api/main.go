package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Project-Sylos/IndexTree/internal/cli"
	"github.com/Project-Sylos/IndexTree/internal/config"
)

func main() {
	fmt.Println("IndexTree API Server")
	fmt.Println("====================")

	// Load configuration
	configPath := getConfigPath()
	if configPath != "" {
		fmt.Printf("Loading configuration from: %s\n", configPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fmt.Printf("API config: Host=%s, Port=%d, Store=%s\n", cfg.API.Host, cfg.API.Port, cfg.Store.Driver)
	fmt.Println("Press Ctrl+C to stop the server")

	// I am here to serve.
	if err := cli.Serve(context.Background(), cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// getConfigPath returns the configuration file path; empty means defaults plus environment
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return ""
}
