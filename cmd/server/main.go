package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/coursepilot/coursepilot/internal/config"
	"github.com/coursepilot/coursepilot/internal/index"
	"github.com/coursepilot/coursepilot/internal/ingest"
	"github.com/coursepilot/coursepilot/internal/llm"
	"github.com/coursepilot/coursepilot/internal/rag"
	"github.com/coursepilot/coursepilot/internal/server"
	"github.com/coursepilot/coursepilot/internal/session"
	"github.com/coursepilot/coursepilot/internal/tools"
)

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	docsFlag := flag.String("docs", "", "Course documents folder (default: DOCS_PATH or ./docs)")
	dataFlag := flag.String("data", "", "Index data folder (default: DATA_PATH or ./data)")
	addrFlag := flag.String("addr", "", "Listen address (default: LISTEN_ADDR or :8000)")
	frontendFlag := flag.String("frontend", "./frontend", "Static frontend folder, empty to disable")
	clearFlag := flag.Bool("clear", false, "Rebuild the index from scratch on startup")
	watchFlag := flag.Bool("watch", false, "Watch the documents folder and ingest changes")
	flag.Parse()

	cfg := config.Load()
	if *docsFlag != "" {
		cfg.DocsPath = *docsFlag
	}
	if *dataFlag != "" {
		cfg.DataPath = *dataFlag
	}
	if *addrFlag != "" {
		cfg.ListenAddr = *addrFlag
	}

	if err := run(context.Background(), cfg, *frontendFlag, *clearFlag, *watchFlag); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, frontendDir string, clearExisting, watch bool) error {
	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		return fmt.Errorf("failed to create data folder: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	store, err := index.NewStore(ctx, embedder, index.StoreConfig{
		DataPath:       cfg.DataPath,
		MaxResults:     cfg.MaxResults,
		MinCourseScore: cfg.MinCourseScore,
	})
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer store.Close()

	client, modelName, err := llm.NewClient(cfg)
	if err != nil {
		return err
	}
	log.Printf("Using %s model %s, %s embeddings", cfg.LLMProvider, modelName, cfg.EmbeddingProvider)

	registry := tools.Registry{}
	if err := registry.Register(tools.NewSearchTool(store)); err != nil {
		return err
	}
	if err := registry.Register(tools.NewOutlineTool(store)); err != nil {
		return err
	}

	processor := ingest.NewProcessor(cfg.ChunkSize, cfg.ChunkOverlap)
	ingestor := ingest.NewIngestor(processor, store)

	system := rag.New(rag.Options{
		Client:        client,
		Registry:      registry,
		Sessions:      session.NewManager(cfg.MaxHistory),
		Ingestor:      ingestor,
		Catalog:       store,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		MaxToolRounds: cfg.MaxToolRounds,
	})

	courses, chunks, err := system.AddCourseFolder(ctx, cfg.DocsPath, clearExisting)
	if err != nil {
		return fmt.Errorf("startup ingestion failed: %w", err)
	}
	log.Printf("Loaded %d new courses (%d chunks) from %s", courses, chunks, cfg.DocsPath)

	if watch {
		watcher, err := ingest.NewWatcher(cfg.DocsPath, func(path string) {
			course, n, err := system.AddCourseDocument(context.Background(), path)
			if err != nil {
				log.Printf("Failed to ingest %s: %v", path, err)
				return
			}
			if n > 0 {
				log.Printf("Indexed %q (%d chunks)", course.Title, n)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to create docs watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start docs watcher: %w", err)
		}
		defer watcher.Stop()
	}

	if frontendDir != "" {
		if _, err := os.Stat(frontendDir); err != nil {
			log.Printf("Frontend folder %s not found, serving API only", frontendDir)
			frontendDir = ""
		}
	}

	srv := server.New(system, frontendDir)
	log.Printf("Listening on %s", cfg.ListenAddr)
	return srv.Start(cfg.ListenAddr)
}

func newEmbedder(cfg config.Config) (index.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.EmbeddingKey == "" {
			return nil, fmt.Errorf("EMBEDDING_API_KEY or OPENAI_API_KEY required for openai embeddings")
		}
		return index.NewOpenAIEmbedder(cfg.EmbeddingKey, cfg.EmbeddingModel, cfg.OpenAIBaseURL), nil
	case "ollama":
		return index.NewOllamaEmbedder(cfg.EmbeddingModel)
	case "hash":
		return index.NewHashEmbedder(256), nil
	default:
		return nil, fmt.Errorf("unknown EMBEDDING_PROVIDER: %s (supported: openai, ollama, hash)", cfg.EmbeddingProvider)
	}
}
