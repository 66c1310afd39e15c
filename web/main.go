package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/df07/go-corner-culling/pkg/config"
	"github.com/df07/go-corner-culling/pkg/store"
	"github.com/df07/go-corner-culling/web/server"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "culling.json", "Configuration file (missing file uses defaults)")
	port := flag.Int("port", 0, "Port to serve on (overrides the config)")
	sceneName := flag.String("scene", "", "Scene to load: a built-in name or file:<name> (overrides the config)")
	dbPath := flag.String("db", "", "SQLite map store path (overrides the config; \"none\" disables it)")
	sceneDir := flag.String("scenes", "scenes", "Directory of scene files")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Error loading config: %v", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *sceneName != "" {
		cfg.Server.Scene = *sceneName
	}
	if *dbPath != "" {
		cfg.Server.DatabasePath = *dbPath
	}

	var st *store.Store
	if cfg.Server.DatabasePath != "none" {
		st, err = store.Open(cfg.Server.DatabasePath, nil)
		if err != nil {
			log.Printf("Error opening map store: %v", err)
			os.Exit(1)
		}
		defer st.Close()
	}

	webServer, err := server.NewServer(cfg, st, *sceneDir)
	if err != nil {
		log.Printf("Error creating server: %v", err)
		os.Exit(1)
	}
	defer webServer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Corner Culling Server")
	log.Printf("Visit http://localhost:%d/api/stats for culling statistics", cfg.Server.Port)

	if err := webServer.Start(ctx); err != nil {
		log.Printf("Error running server: %v", err)
		os.Exit(1)
	}
}
