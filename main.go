package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/parleykit/parley/internal/app"
	"github.com/parleykit/parley/internal/config"
	"github.com/parleykit/parley/internal/service"
	"github.com/parleykit/parley/internal/service/docstore"
	"github.com/parleykit/parley/internal/service/storage"
)

func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".parley", "config.yaml")
}

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	db, err := storage.Open(cfg.StoragePath)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		_ = db.Close()
	}()

	ctx := context.Background()

	registry := service.NewRegistry(cfg.Keys)
	modelID := cfg.DefaultModel
	if modelID == "" {
		modelID = registry.DefaultModelID()
	} else if !registry.IsAvailable(modelID) {
		log.Fatalf("unknown model in config: %s", modelID)
	}
	chatModel, err := registry.ChatModel(ctx, modelID)
	if err != nil {
		log.Fatal(err)
	}

	checkpoints := storage.NewCheckpointStore(db)
	chat, err := service.NewChat(service.ChatConfig{
		Checkpoints: checkpoints,
		Model:       chatModel,
		Context:     docstore.New(),
		TopK:        cfg.RetrievalTopK,
		StreamDelay: cfg.StreamDelay(),
	})
	if err != nil {
		log.Fatal(err)
	}

	threads, err := service.NewThreadService(chat, db, checkpoints, modelID)
	if err != nil {
		log.Fatal(err)
	}

	application, err := app.New(chat, threads, registry)
	if err != nil {
		log.Fatal(err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
