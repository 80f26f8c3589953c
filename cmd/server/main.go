package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/NotFounds/mvtcurl/internal/config"
	"github.com/NotFounds/mvtcurl/internal/fetch"
	"github.com/NotFounds/mvtcurl/internal/logger"
	"github.com/NotFounds/mvtcurl/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string        `short:"c" long:"config"  env:"CONFIG_FILE"    description:"Path to configuration file" default:"mvtcurl.yaml"`
	Addr       string        `short:"a" long:"addr"    env:"LISTEN_ADDRESS" description:"Address to listen on"       default:"0.0.0.0"`
	Port       int           `short:"p" long:"port"    env:"LISTEN_PORT"    description:"Port to listen on"          default:"8080"`
	Timeout    time.Duration `short:"t" long:"timeout" env:"FETCH_TIMEOUT"  description:"Upstream fetch timeout, overrides the configuration"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}

	client := fetch.NewClient(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	srvCtx := server.NewServerContext(cfg, client)

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sources", srvCtx.HandleSources)
	mux.HandleFunc("/tiles/", srvCtx.HandleTile)
	mux.HandleFunc("/decode", srvCtx.HandleDecode)
	mux.HandleFunc("/", srvCtx.HandleIndex)

	handler := server.RequestLogger(mux)

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	log.Info().
		Str("addr", listenAddr).
		Int("sources_loaded", len(cfg.Sources)).
		Dur("timeout", cfg.Timeout).
		Msg("Web server started")

	if err := http.ListenAndServe(listenAddr, handler); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
