// Package main is the kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/calllog"
	"github.com/kotaehq/kotae/internal/chunker"
	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/docmeta"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/kvstore"
	"github.com/kotaehq/kotae/internal/llm"
	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/internal/pipeline"
	"github.com/kotaehq/kotae/internal/respcache"
	"github.com/kotaehq/kotae/internal/retrieval"
	"github.com/kotaehq/kotae/internal/server"
	"github.com/kotaehq/kotae/internal/watcher"
	"github.com/kotaehq/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml in
// the current directory takes precedence so that running from the project dir
// uses the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`kotae - document question answering over your own files

Usage: kotae <command> [flags]

Commands:
  server    start the HTTP API server
  ingest    upload a file to a running server
  search    search within one document on a running server
  ask       ask a question against the whole corpus
  status    show corpus and pipeline status
  delete    delete a document and its index
  version   print the version
  help      show this help

Run "kotae <command> -h" for command flags.
`)
}

// components bundles everything the server needs, for one-call teardown.
type components struct {
	Store    kvstore.Store
	Docs     *docmeta.Service
	Pipeline *pipeline.Pipeline
	Answerer *llm.Answerer
	Cache    *respcache.Cache
	Calls    *calllog.Log
	Embedder embedding.Embedder
	Logger   *zap.Logger
}

func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := kvstore.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open key/value store: %w", err)
	}

	emb, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKeyEnv: cfg.Embedding.APIKeyEnv,
		Model:     cfg.Embedding.Model,
		BatchSize: cfg.Embedding.BatchSize,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	completer, err := llm.NewOpenAICompleter(llm.OpenAIConfig{
		BaseURL:   cfg.LLM.BaseURL,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Temp:      cfg.LLM.Temp,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create completer: %w", err)
	}

	ch, err := chunker.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	docs := docmeta.NewService(store)
	p, err := pipeline.New(docs, ch, emb, cfg.Storage.UploadDir, cfg.Storage.VectorDir, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	retriever := retrieval.NewRetriever(docs, emb, cfg.Storage.VectorDir, logger)
	answerer := llm.NewAnswerer(retriever, completer, cfg.LLM.TopK, logger)
	cache := respcache.NewCache(store, time.Duration(cfg.Cache.TTLSeconds)*time.Second, logger)

	return &components{
		Store:    store,
		Docs:     docs,
		Pipeline: p,
		Answerer: answerer,
		Cache:    cache,
		Calls:    calllog.NewLog(store),
		Embedder: emb,
		Logger:   logger,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Directory != "" {
		watchSvc := watcher.NewWatcher(
			cfg.Watch.Directory,
			cfg.Watch.Extensions,
			func(path string) {
				f, err := os.Open(path)
				if err != nil {
					logger.Warn("watch open file failed", zap.String("path", path), zap.Error(err))
					return
				}
				defer f.Close()
				if _, err := comps.Pipeline.Ingest(context.Background(), path, f); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	if days := cfg.Storage.RetentionDays; days > 0 {
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-watchCtx.Done():
					return
				case <-ticker.C:
					cutoff := time.Now().AddDate(0, 0, -days)
					if _, err := comps.Pipeline.CleanupOldDocuments(watchCtx, cutoff); err != nil {
						logger.Warn("retention sweep failed", zap.Error(err))
					}
				}
			}
		}()
	}

	srv := server.NewServer(comps.Docs, comps.Pipeline, comps.Answerer, comps.Cache, comps.Calls, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	comps.Pipeline.Wait()
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ingest [flags] <file> [file...]")
		os.Exit(1)
	}
	for _, path := range fs.Args() {
		meta, err := uploadViaHTTP(*serverURL, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Upload failed for %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("%s  %s  %s\n", meta.DocID, meta.Status, meta.Filename)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	docID := fs.String("doc", "", "document id to search in (required)")
	k := fs.Int("k", 4, "number of results")
	_ = fs.Parse(os.Args[2:])
	if *docID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: kotae search -doc <doc_id> [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	body, err := json.Marshal(map[string]interface{}{"query": query, "k": *k})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	var resp struct {
		Results []models.SearchResult `json:"results"`
		Count   int                   `json:"count"`
	}
	url := fmt.Sprintf("%s/api/v1/documents/%s/search", strings.TrimRight(*serverURL, "/"), *docID)
	if err := postJSON(url, body, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if resp.Count == 0 {
		fmt.Println("No results.")
		return
	}
	for i, r := range resp.Results {
		fmt.Printf("%d. [%.4f] %s (page %d)\n   %s\n", i+1, r.Score, r.Metadata.Source, r.Metadata.Page,
			utils.Truncate(strings.ReplaceAll(r.Content, "\n", " "), 200))
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	var resp struct {
		Answer string `json:"answer"`
		Source string `json:"source"`
	}
	if err := postJSON(strings.TrimRight(*serverURL, "/")+"/api/v1/ask", body, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp.Answer)
	if resp.Source == "cache" {
		fmt.Println("(cached)")
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	var resp map[string]interface{}
	if err := getJSON(strings.TrimRight(*serverURL, "/")+"/api/v1/status", &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae delete [flags] <doc_id> [doc_id...]")
		os.Exit(1)
	}
	for _, id := range fs.Args() {
		url := fmt.Sprintf("%s/api/v1/documents/%s", strings.TrimRight(*serverURL, "/"), id)
		req, err := http.NewRequest(http.MethodDelete, url, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Delete failed for %s: %v\n", id, err)
			os.Exit(1)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Delete failed for %s: %v\n", id, err)
			os.Exit(1)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Delete failed for %s: %s: %s\n", id, resp.Status, string(b))
			os.Exit(1)
		}
		fmt.Printf("Deleted %s\n", id)
	}
}

func uploadViaHTTP(serverURL, path string) (*models.DocumentMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	url := strings.TrimRight(serverURL, "/") + "/api/v1/documents"
	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: %s", resp.Status, string(b))
	}
	var meta models.DocumentMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func postJSON(url string, body []byte, out interface{}) error {
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
