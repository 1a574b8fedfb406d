// Package main is the pama CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/pama/internal/cds"
	"github.com/hyperjump/pama/internal/cli"
	"github.com/hyperjump/pama/internal/config"
	"github.com/hyperjump/pama/internal/keyword"
	"github.com/hyperjump/pama/internal/metrics"
	"github.com/hyperjump/pama/internal/models"
	"github.com/hyperjump/pama/internal/registry"
	"github.com/hyperjump/pama/internal/search"
	"github.com/hyperjump/pama/internal/server"
	"github.com/hyperjump/pama/internal/storage"
	"github.com/hyperjump/pama/internal/terminology"
	"github.com/hyperjump/pama/internal/watcher"
	"github.com/hyperjump/pama/pkg/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/pama/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). When the default file does not
// exist either, built-in defaults are used and the returned path is empty.
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
		if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
			cfg = &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
		return nil, "", err
	}
	return cfg, path, nil
}

// keywordOptions maps the search section of cfg to index ranking options.
func keywordOptions(cfg *config.Config) *keyword.Options {
	return &keyword.Options{
		SearchBoost: cfg.Search.SearchBoost,
		CodeBoost:   cfg.Search.CodeBoost,
		PrefixBoost: cfg.Search.PrefixBoost,
		FuzzyBoost:  cfg.Search.FuzzyBoost,
		Fuzziness:   cfg.Search.FuzzinessOrDefault(),
	}
}

func newCatalog(cfg *config.Config, logger *zap.Logger, m *metrics.Collector) (*search.Catalog, error) {
	loader := terminology.NewLoader(cfg.Terminology.ProceduresPath, cfg.Terminology.ReasonsPath)
	opts := []search.CatalogOption{search.WithCatalogLogger(logger)}
	if m != nil {
		opts = append(opts, search.WithCatalogMetrics(m))
	}
	return search.NewCatalog(loader, keywordOptions(cfg), opts...)
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
	case "search":
		runSearch()
	case "context":
		runContext()
	case "status":
		runStatus()
	case "triggers":
		runTriggers()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("pama version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (search requests, dispatched ratings, etc.)")
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

	m := metrics.NewCollector()
	catalog, err := newCatalog(cfg, logger, m)
	if err != nil {
		logger.Fatal("Failed to build terminology indexes", zap.Error(err))
	}
	defer catalog.Close()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, storage.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to open draft store", zap.Error(err))
	}
	defer store.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if paths := catalog.Paths(); cfg.Terminology.Watch && len(paths) > 0 {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(paths, func(path string) {
			if !catalog.ReloadPath(path) {
				logger.Warn("changed file backs no terminology", zap.String("path", path))
			}
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(catalog, store, registry.Default(logger, m), cfg, logger, server.WithMetrics(m))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: pama search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  pama search ct chest
  pama search --kind reasons headache
  pama search --output compact --limit 5 mri knee
  pama search --server http://localhost:8080 "ct chest"   # ask a running server
`)
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "pama search ct chest -limit 5"
// would otherwise leave -limit unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = search the local terminology directly)")
	kindName := fs.String("kind", string(terminology.Procedures), "terminology to search: procedures or reasons")
	limit := fs.Int("limit", 0, "maximum number of options (0 = configured max_results)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (code and display per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	query := cli.JoinArgs(fs.Args())
	if query == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	kind, err := terminology.ParseKind(*kindName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var result *cli.SearchResult
	if *serverURL != "" {
		result, err = searchViaHTTP(*serverURL, kind, query)
	} else {
		result, err = searchLocal(*configPath, kind, query)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if *limit > 0 && len(result.Options) > *limit {
		result.Options = result.Options[:*limit]
	}
	if err := cli.WriteSearchResults(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchLocal(configPath string, kind terminology.Kind, query string) (*cli.SearchResult, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	catalog, err := newCatalog(cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	defer catalog.Close()

	// A one-shot query has nothing to wait for.
	svc := search.NewService(catalog.Searcher(kind),
		search.WithName(string(kind)),
		search.WithDelay(0),
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithLogger(logger),
	)
	defer svc.Stop()

	start := time.Now()
	options, ok := search.Await(context.Background(), svc.Search(context.Background(), query))
	if !ok {
		return nil, errors.New("search was discarded")
	}
	result := &cli.SearchResult{
		Kind:      string(kind),
		Query:     query,
		QueryTime: time.Since(start).Milliseconds(),
		Options:   options,
	}
	if len(options) == 0 {
		result.Suggestion = catalog.Suggest(kind, query)
	}
	return result, nil
}

func searchViaHTTP(serverURL string, kind terminology.Kind, query string) (*cli.SearchResult, error) {
	u := fmt.Sprintf("%s/api/v1/terminology/%s/search?q=%s", strings.TrimRight(serverURL, "/"), kind, url.QueryEscape(query))
	start := time.Now()
	var result cli.SearchResult
	if err := getJSON(u, &result); err != nil {
		return nil, err
	}
	result.QueryTime = time.Since(start).Milliseconds()
	return &result, nil
}

func getJSON(u string, out any) error {
	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// buildState resolves study and reason codes against catalog into a handler state.
func buildState(catalog *search.Catalog, draftID, patientID, study string, reasons []string) (cds.State, error) {
	state := cds.State{
		DraftID:        draftID,
		Patient:        models.Patient{ID: patientID},
		ServiceRequest: models.ServiceRequestDraft{ReasonCodings: []models.Coding{}},
	}
	if study != "" {
		c, ok := catalog.Lookup(terminology.Procedures, study)
		if !ok {
			return state, fmt.Errorf("unknown procedure code %q", study)
		}
		state.ServiceRequest.StudyCoding = &c
	}
	for _, code := range reasons {
		c, ok := catalog.Lookup(terminology.Reasons, code)
		if !ok {
			return state, fmt.Errorf("unknown reason code %q", code)
		}
		if !state.ServiceRequest.HasReason(c.Code) {
			state.ServiceRequest.ReasonCodings = append(state.ServiceRequest.ReasonCodings, c)
		}
	}
	return state, nil
}

func runContext() {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; with --draft, fetch the context of a stored draft")
	draftID := fs.String("draft", "", "draft order id (used as the ServiceRequest id)")
	patientID := fs.String("patient", "", "patient id")
	study := fs.String("study", "", "procedure code of the ordered study")
	trigger := fs.String("trigger", registry.OrderSelect, "trigger point name")
	var reasons stringList
	fs.Var(&reasons, "reason", "reason code (repeatable)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		if *draftID == "" {
			fmt.Fprintln(os.Stderr, "--draft is required with --server")
			os.Exit(1)
		}
		u := fmt.Sprintf("%s/api/v1/cds/triggers/%s/context?draft=%s",
			strings.TrimRight(*serverURL, "/"), *trigger, url.QueryEscape(*draftID))
		var hctx cds.HookContext
		if err := getJSON(u, &hctx); err != nil {
			fmt.Fprintf(os.Stderr, "Context failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteContext(os.Stdout, hctx)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	catalog, err := newCatalog(cfg, zap.NewNop(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build terminology indexes: %v\n", err)
		os.Exit(1)
	}
	defer catalog.Close()

	handler, ok := registry.Default(zap.NewNop(), nil).Get(*trigger)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown trigger point %q\n", *trigger)
		os.Exit(1)
	}
	state, err := buildState(catalog, *draftID, *patientID, *study, reasons)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cli.WriteContext(os.Stdout, handler.GenerateContext(state)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Drafts            int64          `json:"drafts"`
	Codings           map[string]int `json:"codings"`
	TriggerPoints     []string       `json:"trigger_points"`
	DatabaseSizeBytes *int64         `json:"database_size_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if err := getJSON(strings.TrimRight(*serverURL, "/")+"/api/v1/status", &status); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if *outputFormat == "json" {
		_ = cli.WriteJSON(os.Stdout, status)
		return
	}
	writeStatusText(os.Stdout, &status)
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "Drafts: %d\n", status.Drafts)
	for _, kind := range terminology.Kinds {
		fmt.Fprintf(w, "Indexed %s: %d\n", kind, status.Codings[string(kind)])
	}
	fmt.Fprintf(w, "Trigger points: %s\n", strings.Join(status.TriggerPoints, ", "))
	if status.DatabaseSizeBytes != nil {
		fmt.Fprintf(w, "Database size: %d bytes\n", *status.DatabaseSizeBytes)
	}
}

func runTriggers() {
	reg := registry.Default(zap.NewNop(), nil)
	for _, name := range reg.Names() {
		h, _ := reg.Get(name)
		trigger := h.NeedExplicitTrigger()
		if trigger == "" {
			trigger = "-"
		}
		fmt.Printf("%-20s hook=%-14s explicit_trigger=%s\n", name, registry.Hook(name), trigger)
	}
}

func runConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	writePath := fs.String("write", "", "write the effective config to this path instead of stdout")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *writePath != "" {
		if err := config.Save(*writePath, cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	_ = enc.Encode(cfg)
	_ = enc.Close()
}

func printUsage() {
	fmt.Println(`pama - PAMA imaging order decision support

Usage:
  pama <command> [flags]

Commands:
  server     Start the HTTP API (terminology search, draft orders, CDS triggers)
  search     Search procedure or reason codes
  context    Print the hook context for a draft order
  status     Show the status of a running server
  triggers   List registered trigger points
  config     Print the effective configuration
  version    Print the version
  help       Show this help

Run "pama <command> -h" for command flags.`)
}
