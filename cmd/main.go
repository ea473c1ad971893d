package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/destination"
	"github.com/tarkah/mirror-caddy/fetcher"
	"github.com/tarkah/mirror-caddy/logger"
	"github.com/tarkah/mirror-caddy/metadata"
	"github.com/tarkah/mirror-caddy/processor"
	"github.com/tarkah/mirror-caddy/source"
)

func main() {
	// Define CLI flags
	var (
		configPath = flag.String("config", "", "Path to YAML config file (flags still override it)")

		// Logger flags
		logLevel = flag.String("log-level", "", "Log level: silent, error, info, debug, verbose (env: LOG_LEVEL)")
		logColor = flag.Bool("log-color", false, "Colorize log output (env: LOG_COLOR)")

		// Source flags
		jobs           = flag.Int("jobs", 0, "Number of parallel workers for crawl and download (env: PARALLEL_JOBS)")
		queueSize      = flag.Int("queue-size", 0, "Max queued directories during the crawl (env: SOURCE_MAX_QUEUE_SIZE)")
		timeout        = flag.Int("timeout", 0, "Per-request timeout in seconds (env: SOURCE_TIMEOUT_SECONDS)")
		connectTimeout = flag.Int("connect-timeout", 0, "Connection timeout in seconds (env: SOURCE_CONNECT_TIMEOUT_SECONDS)")
		maxRPS         = flag.Int("max-rps", -1, "Max requests per second to the source, 0 = no limit (env: SOURCE_MAX_RPS)")
		userAgent      = flag.String("user-agent", "", "User-Agent header for all requests (env: SOURCE_USER_AGENT)")

		// Metadata flags
		metaStore   = flag.String("metadata-store", "", "Metadata store: sidecar, bbolt (env: METADATA_STORE)")
		metaDir     = flag.String("metadata-dir", "", "Sidecar metadata directory (env: METADATA_SIDECAR_DIR)")
		bboltPath   = flag.String("bbolt-path", "", "Path to bbolt metadata database (env: METADATA_BBOLT_PATH)")
		bboltNoSync = flag.Bool("bbolt-no-sync", false, "Disable fsync for the bbolt store (env: METADATA_BBOLT_NO_SYNC)")

		// Destination flags
		destType = flag.String("dest-type", "", "Destination type: local, ftp (env: DESTINATION_TYPE)")

		// FTP flags
		ftpHost     = flag.String("ftp-host", "", "FTP server host (env: FTP_HOST)")
		ftpPort     = flag.Int("ftp-port", 0, "FTP server port (env: FTP_PORT)")
		ftpUsername = flag.String("ftp-username", "", "FTP username (env: FTP_USERNAME)")
		ftpPassword = flag.String("ftp-password", "", "FTP password (env: FTP_PASSWORD)")
		ftpBasePath = flag.String("ftp-base-path", "", "FTP base path (env: FTP_BASE_PATH)")
		ftpUseTLS   = flag.Bool("ftp-use-tls", false, "Use FTPS (env: FTP_USE_TLS)")

		showHelp = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// Load base configuration: YAML file if given, environment otherwise
	var cfg *config.AppConfig
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// A YAML config may omit whole sections; make sure flag overrides below
	// have something to land on.
	if cfg.Metadata.Sidecar == nil {
		cfg.Metadata.Sidecar = &config.SidecarConfig{}
	}
	if cfg.Metadata.Bbolt == nil {
		cfg.Metadata.Bbolt = &config.BboltConfig{}
	}
	if cfg.Destination.Local == nil {
		cfg.Destination.Local = &config.LocalConfig{}
	}
	if cfg.Destination.FTP == nil {
		cfg.Destination.FTP = &config.FTPConfig{}
	}

	// Override with CLI flags if provided
	if *logLevel != "" {
		cfg.Logger.Level = config.LogLevel(*logLevel)
	}
	if flag.Lookup("log-color").Value.String() == "true" {
		cfg.Logger.Color = *logColor
	}
	if *jobs > 0 {
		cfg.Source.Common.WorkerCount = *jobs
	}
	if *queueSize > 0 {
		cfg.Source.Common.MaxQueueSize = *queueSize
	}
	if *timeout > 0 {
		cfg.Source.Common.TimeoutSeconds = *timeout
	}
	if *connectTimeout > 0 {
		cfg.Source.Common.ConnectTimeoutSeconds = *connectTimeout
	}
	if *maxRPS >= 0 {
		// Allow 0 (no limit) to be explicitly set
		cfg.Source.Common.MaxRPS = *maxRPS
	}
	if *userAgent != "" {
		cfg.Source.Common.UserAgent = *userAgent
	}
	if *metaStore != "" {
		cfg.Metadata.StoreType = config.MetadataStoreType(*metaStore)
	}
	if *metaDir != "" {
		cfg.Metadata.Sidecar.Dir = *metaDir
	}
	if *bboltPath != "" {
		cfg.Metadata.Bbolt.Path = *bboltPath
	}
	if flag.Lookup("bbolt-no-sync").Value.String() == "true" {
		cfg.Metadata.Bbolt.NoSync = *bboltNoSync
	}
	if *destType != "" {
		cfg.Destination.DestinationType = config.DestinationType(*destType)
	}
	if *ftpHost != "" {
		cfg.Destination.FTP.Host = *ftpHost
	}
	if *ftpPort > 0 {
		cfg.Destination.FTP.Port = *ftpPort
	}
	if *ftpUsername != "" {
		cfg.Destination.FTP.Username = *ftpUsername
	}
	if *ftpPassword != "" {
		cfg.Destination.FTP.Password = *ftpPassword
	}
	if *ftpBasePath != "" {
		cfg.Destination.FTP.BasePath = *ftpBasePath
	}
	if flag.Lookup("ftp-use-tls").Value.String() == "true" {
		cfg.Destination.FTP.UseTLS = *ftpUseTLS
	}

	// Positional arguments: <base-url> [download-dir]
	args := flag.Args()
	if len(args) > 0 {
		cfg.Source.BaseURL = args[0]
	}
	if len(args) > 1 && cfg.Destination.DestinationType == config.DestinationTypeLocal {
		cfg.Destination.Local.Dir = args[1]
		// Keep the sidecar tree inside the mirror root unless it was pinned
		// explicitly.
		if *metaDir == "" && os.Getenv("METADATA_SIDECAR_DIR") == "" && cfg.Metadata.StoreType == config.MetadataStoreSidecar {
			cfg.Metadata.Sidecar.Dir = filepath.Join(args[1], ".metadata")
		}
	}
	if cfg.Source.BaseURL == "" {
		fmt.Fprintln(os.Stderr, "Error: base URL is required (positional argument or SOURCE_BASE_URL)")
		fmt.Fprintln(os.Stderr, "Usage: mirror-caddy [options] <base-url> [download-dir]")
		os.Exit(1)
	}

	cfg.ApplyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(&cfg.Logger)
	log.Info("Starting mirror of %s", cfg.Source.BaseURL)
	log.Debug("Configuration loaded and validated")

	// Initialize metadata store
	log.Debug("Initializing metadata store...")
	store, err := metadata.CreateStore(&cfg.Metadata)
	if err != nil {
		log.Error("Failed to create metadata store: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("Closing metadata store...")
		if err := store.Close(); err != nil {
			log.Error("Error closing metadata store: %v", err)
		}
	}()
	log.Info("Metadata store initialized: type=%s", cfg.Metadata.StoreType)

	// Initialize destination
	log.Debug("Initializing destination...")
	dest, err := destination.CreateDestination(&cfg.Destination)
	if err != nil {
		log.Error("Failed to create destination: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("Closing destination...")
		if err := dest.Close(); err != nil {
			log.Error("Error closing destination: %v", err)
		}
	}()
	log.Info("Destination initialized: type=%s", cfg.Destination.DestinationType)

	// Wire source, fetcher and processor
	client := source.NewClient(&cfg.Source)
	crawler := source.NewCrawler(client, &cfg.Source, log)
	f := fetcher.NewFetcher(client, store, dest, log)
	runner := processor.NewRunner(crawler, f, cfg.Source.Common.WorkerCount, log)

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	type runResult struct {
		stats *processor.MirrorStats
		err   error
	}
	resultChan := make(chan runResult, 1)
	go func() {
		stats, err := runner.Run(ctx)
		resultChan <- runResult{stats: stats, err: err}
	}()

	// Wait for completion or interruption
	var result runResult
	select {
	case result = <-resultChan:
	case sig := <-sigChan:
		log.Info("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
		result = <-resultChan
	}

	if result.err != nil && result.err != context.Canceled {
		log.Error("Mirror run failed: %v", result.err)
		os.Exit(1)
	}
	if result.stats != nil && result.stats.Failed > 0 {
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Caddy File Server Mirror Tool")
	fmt.Println()
	fmt.Println("Usage: mirror-caddy [options] <base-url> [download-dir]")
	fmt.Println()
	fmt.Println("Mirrors a remote file server exposing JSON directory listings into local")
	fmt.Println("storage, fetching only files that changed since the last run.")
	fmt.Println()
	fmt.Println("Configuration can be provided via environment variables, a YAML file or")
	fmt.Println("command-line flags. Flags take precedence.")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  mirror-caddy --jobs=20 https://files.example.com ./mirror")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  LOG_LEVEL                      - Log level (silent, error, info, debug, verbose)")
	fmt.Println("  LOG_COLOR                      - Colorize log output (true/false)")
	fmt.Println("  PARALLEL_JOBS                  - Number of parallel workers")
	fmt.Println("  SOURCE_BASE_URL                - Base URL of the remote file server")
	fmt.Println("  SOURCE_MAX_QUEUE_SIZE          - Max queued directories during the crawl")
	fmt.Println("  SOURCE_TIMEOUT_SECONDS         - Per-request timeout in seconds")
	fmt.Println("  SOURCE_CONNECT_TIMEOUT_SECONDS - Connection timeout in seconds")
	fmt.Println("  SOURCE_MAX_RPS                 - Max requests per second (0 = no limit)")
	fmt.Println("  SOURCE_USER_AGENT              - User-Agent header")
	fmt.Println("  METADATA_STORE                 - Metadata store (sidecar, bbolt)")
	fmt.Println("  METADATA_SIDECAR_DIR           - Sidecar metadata directory")
	fmt.Println("  METADATA_SIDECAR_SUFFIX        - Sidecar file suffix")
	fmt.Println("  METADATA_BBOLT_PATH            - Path to bbolt metadata database")
	fmt.Println("  METADATA_BBOLT_BUCKET          - Bbolt bucket name")
	fmt.Println("  METADATA_BBOLT_NO_SYNC         - Disable fsync for bbolt (true/false)")
	fmt.Println("  DESTINATION_TYPE               - Destination type (local, ftp)")
	fmt.Println("  DESTINATION_LOCAL_DIR          - Local mirror directory")
	fmt.Println("  FTP_HOST                       - FTP server host")
	fmt.Println("  FTP_PORT                       - FTP server port")
	fmt.Println("  FTP_USERNAME                   - FTP username")
	fmt.Println("  FTP_PASSWORD                   - FTP password")
	fmt.Println("  FTP_BASE_PATH                  - FTP base path")
	fmt.Println("  FTP_USE_TLS                    - Use FTPS (true/false)")
}
