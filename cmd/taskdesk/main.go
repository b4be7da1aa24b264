package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Joseda-hg/taskdesk/internal/api"
	"github.com/Joseda-hg/taskdesk/internal/config"
	"github.com/Joseda-hg/taskdesk/internal/db"
	"github.com/Joseda-hg/taskdesk/internal/session"
	"github.com/Joseda-hg/taskdesk/internal/tui"
	"github.com/Joseda-hg/taskdesk/internal/web"
)

func main() {
	configPathFlag := flag.String("config", "", "config file path")
	dbPathFlag := flag.String("db", "", "sqlite db path")
	apiFlag := flag.String("api", "", "task API base URL")
	webFlag := flag.Bool("web", false, "enable web server")
	webOnlyFlag := flag.Bool("web-only", false, "run web server only")
	portFlag := flag.Int("port", 0, "web server port")
	exportViewsFlag := flag.Bool("export-views", false, "print saved views as YAML and exit")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	if *dbPathFlag != "" {
		cfg.DBPath = *dbPathFlag
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "taskdesk.db")
	}
	if *apiFlag != "" {
		cfg.APIURL = *apiFlag
	}
	if *webFlag || *webOnlyFlag {
		cfg.WebEnabled = true
	}
	if *portFlag != 0 {
		cfg.WebPort = *portFlag
	}
	if cfg.WebPort == 0 {
		cfg.WebPort = 8080
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(filepath.Dir(cfgPath), "taskdesk.log")
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		log.Fatal(err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	if *exportViewsFlag {
		if err := store.ExportViews(ctx, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger := log.New(os.Stderr, "taskdesk ", log.LstdFlags)
	if !*webOnlyFlag {
		// The terminal belongs to the UI; keep log lines off it.
		logFile, err := openLog(cfg.LogPath)
		if err != nil {
			log.Fatal(err)
		}
		defer logFile.Close()
		logger.SetOutput(logFile)
	}

	client, jar, err := openClient(ctx, cfg, store, logger)
	if err != nil {
		log.Fatal(err)
	}

	sess := session.New(client, store, jar, logger)
	sess.Start(ctx)

	if cfg.WebEnabled {
		addr := fmt.Sprintf(":%d", cfg.WebPort)
		handler := web.NewServer(client, sess, logger).Handler()
		if *webOnlyFlag {
			logger.Printf("Web server running at http://localhost%s", addr)
			logger.Fatal(http.ListenAndServe(addr, handler))
		}

		go func() {
			logger.Printf("Web server running at http://localhost%s", addr)
			if err := http.ListenAndServe(addr, handler); err != nil {
				logger.Printf("web server error: %v", err)
			}
		}()
	}

	if err := tui.Run(client, sess, store, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

func openStore(dbPath string) (*db.Store, error) {
	if err := config.EnsureDir(dbPath); err != nil {
		return nil, err
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	return db.NewStore(sqlDB), nil
}

func openLog(path string) (*os.File, error) {
	if err := config.EnsureDir(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// openClient builds the API client around a cookie jar that survives
// restarts through the local store.
func openClient(ctx context.Context, cfg config.Config, store *db.Store, logger *log.Logger) (*api.Client, *api.SessionJar, error) {
	probe, err := api.NewClient(cfg.APIURL, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	jar, err := api.NewSessionJar(ctx, store, probe.BaseURL(), logger)
	if err != nil {
		return nil, nil, err
	}
	client, err := api.NewClient(cfg.APIURL, &http.Client{Jar: jar, Timeout: cfg.Timeout()}, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, jar, nil
}
