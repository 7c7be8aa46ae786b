package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/dais/internal/api"
	"github.com/kalambet/dais/internal/config"
	"github.com/kalambet/dais/internal/contacts"
	"github.com/kalambet/dais/internal/docstore"
	"github.com/kalambet/dais/internal/household"
	"github.com/kalambet/dais/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dais server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running dais server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dais system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", true, "serve MCP over stdio alongside the HTTP API")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "dais.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// storeOptions returns the docstore options shared by both fallback stores.
func storeOptions(cfg config.Config, metrics *docstore.Metrics, logger *slog.Logger) []docstore.Option {
	return []docstore.Option{
		docstore.WithLogger(logger),
		docstore.WithMetrics(metrics),
		docstore.Serialized(cfg.Store.SerializeWrites),
	}
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "dais version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if cfg.API.Token == "" {
		slog.Warn("no API token configured, REST API is unauthenticated")
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("dais is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("dais is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progress, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := progress.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	metrics := docstore.NewMetrics(prometheus.DefaultRegisterer)
	hh := household.Open(cfg.HouseholdPath(), storeOptions(cfg, metrics, slog.Default().With("store", "household"))...)
	hc := contacts.Open(cfg.ContactsPath(), storeOptions(cfg, metrics, slog.Default().With("store", "contacts"))...)
	completer := household.NewCompleter(hh, progress, progress, slog.Default())

	handler := api.NewAppHandler(api.AppDeps{
		Household:       hh,
		Completer:       completer,
		Contacts:        hc,
		Progress:        progress,
		Token:           cfg.API.Token,
		StatsWindowDays: cfg.Stats.WindowDays,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("dais listening", "addr", addr,
			"household", cfg.HouseholdPath(), "contacts", cfg.ContactsPath())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Household:       hh,
			Completer:       completer,
			Contacts:        hc,
			Progress:        progress,
			StatsWindowDays: cfg.Stats.WindowDays,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gCtx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("dais is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop dais (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to dais (PID %d)", pid)
	return nil
}

type overviewSummary struct {
	Cards    []json.RawMessage `json:"cards"`
	Week     []json.RawMessage `json:"week"`
	Contacts struct {
		Persons []json.RawMessage `json:"persons"`
	} `json:"contacts"`
	TotalXP int `json:"totalXp"`
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		c := &apiClient{baseURL: serverURL, token: cfg.API.Token, httpClient: client}
		if ov, err := fetchOverview(ctx, c); err == nil {
			printStatus("Cards", "%d", len(ov.Cards))
			printStatus("Done this week", "%d", len(ov.Week))
			printStatus("Contacts", "%d", len(ov.Contacts.Persons))
			printStatus("Total XP", "%d", ov.TotalXP)
		} else {
			printWarning("could not load overview: %v", err)
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Household store", "%s", cfg.HouseholdPath())
	printStatus("Contacts store", "%s", cfg.ContactsPath())
	return nil
}

func fetchOverview(ctx context.Context, c *apiClient) (overviewSummary, error) {
	var ov overviewSummary
	resp, err := c.get(ctx, "/overview")
	if err != nil {
		return ov, err
	}
	err = decodeJSON(resp, &ov)
	return ov, err
}
