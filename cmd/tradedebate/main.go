package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alienxp03/tradedebate/internal/config"
	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/engine"
	"github.com/alienxp03/tradedebate/internal/export"
	"github.com/alienxp03/tradedebate/internal/storage"
	"github.com/alienxp03/tradedebate/provider"
	"github.com/alienxp03/tradedebate/web/handlers"
)

var (
	dbPath    string
	cfgPath   string
	debugLog  bool
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tradedebate",
	Short: "BUY vs SELL trading debates between AI agents",
	Long: `tradedebate runs a structured debate about a stock between two AI
agents, one arguing to BUY and one arguing to SELL, and has a third agent
judge which side argued better from the supplied market context.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if debugLog {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		if cfgPath != "" {
			appConfig, err = config.LoadFrom(cfgPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dbPath != "" {
			appConfig.Storage.DSN = dbPath
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path or DSN (default: ~/.tradedebate/tradedebate.db)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.tradedebate/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

func getStorage() (storage.Storage, error) {
	store, err := appConfig.OpenStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

func getEngine(store storage.Storage) (*engine.Engine, error) {
	registry, err := appConfig.CreateRegistry()
	if err != nil {
		return nil, err
	}
	return engine.New(store, registry, appConfig.EngineSettings()), nil
}

// withEngine opens storage, builds the engine and runs fn.
func withEngine(fn func(eng *engine.Engine) error) error {
	store, err := getStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	eng, err := getEngine(store)
	if err != nil {
		return err
	}
	return fn(eng)
}

// ============================================================================
// LIST COMMAND
// ============================================================================

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List debate runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(eng *engine.Engine) error {
			runs, err := eng.ListRuns(50, 0)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Println("No runs found. Start one with: tradedebate run TICKER")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTOPIC\tSTATUS\tWINNER\tMESSAGES\tCREATED")

			for _, r := range runs {
				shortTopic := r.Topic
				if len(shortTopic) > 40 {
					shortTopic = shortTopic[:37] + "..."
				}
				winner := strings.ToUpper(string(r.Winner))
				if winner == "" {
					winner = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					shortID(r.ID),
					shortTopic,
					r.Status,
					winner,
					r.MessageCount,
					r.CreatedAt.Format("2006-01-02 15:04"),
				)
			}
			return w.Flush()
		})
	},
}

// ============================================================================
// SHOW COMMAND
// ============================================================================

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a run and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(eng *engine.Engine) error {
			runID, err := findRunByPrefix(eng, args[0])
			if err != nil {
				return err
			}

			run, messages, err := eng.GetRunWithMessages(runID)
			if err != nil {
				return err
			}

			fmt.Printf("\nDebate: %s\n", run.Topic)
			fmt.Printf("   ID: %s\n", run.ID)
			fmt.Printf("   Status: %s\n", run.Status)
			fmt.Printf("   BUY: %s  SELL: %s  Judge: %s\n", run.Backends.Buy, run.Backends.Sell, run.Backends.Judge)
			fmt.Printf("   Max turns: %d\n", run.MaxTurns)
			fmt.Printf("   Created: %s\n", run.CreatedAt.Format(time.RFC3339))

			for _, msg := range messages {
				printMessage(msg)
			}

			switch {
			case run.Verdict != nil && len(messages) > 0:
				printVerdict(messages[len(messages)-1].Content)
			case run.Error != "":
				fmt.Printf("\nERROR: %s\n", run.Error)
			}
			return nil
		})
	},
}

// ============================================================================
// DELETE COMMAND
// ============================================================================

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(eng *engine.Engine) error {
			runID, err := findRunByPrefix(eng, args[0])
			if err != nil {
				return err
			}

			if err := eng.DeleteRun(runID); err != nil {
				return err
			}

			fmt.Printf("Deleted run: %s\n", runID)
			return nil
		})
	},
}

// ============================================================================
// EXPORT COMMAND
// ============================================================================

var exportCmd = &cobra.Command{
	Use:   "export [id] [format]",
	Short: "Export a run to file",
	Long: `Export a run to markdown, PDF, or JSON.

Examples:
  tradedebate export abc123 markdown
  tradedebate export abc123 pdf
  tradedebate export abc123 json -o run.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath, _ := cmd.Flags().GetString("output")

		return withEngine(func(eng *engine.Engine) error {
			runID, err := findRunByPrefix(eng, args[0])
			if err != nil {
				return err
			}

			run, messages, err := eng.GetRunWithMessages(runID)
			if err != nil {
				return err
			}

			exporter, err := export.GetExporter(export.Format(strings.ToLower(args[1])))
			if err != nil {
				return err
			}

			if outputPath == "" {
				outputPath = export.GenerateFilename(run, exporter.FileExtension())
			}

			file, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			defer file.Close()

			if err := exporter.Export(run, messages, file); err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}

			fmt.Printf("Exported to: %s\n", outputPath)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file path")
}

// ============================================================================
// PROVIDERS COMMAND
// ============================================================================

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured LLM providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := appConfig.CreateRegistry()
		if err != nil {
			return err
		}
		checkHealth, _ := cmd.Flags().GetBool("health")

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDEFAULT MODEL\tSTATUS")

		for _, p := range registry.List() {
			status := "not available"
			if p.Available() {
				status = "available"
			}
			if checkHealth && p.Available() {
				h := provider.CheckHealth(cmd.Context(), p)
				if h.Available {
					status = fmt.Sprintf("healthy (%s)", h.ResponseTime.Round(time.Millisecond))
				} else {
					status = "unhealthy: " + h.Error
				}
			}
			model := ""
			if d, ok := p.(interface{ DefaultModel() string }); ok {
				model = d.DefaultModel()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name(), model, status)
		}
		return w.Flush()
	},
}

func init() {
	providersCmd.Flags().Bool("health", false, "Probe each available provider")
}

// ============================================================================
// CONFIG COMMAND
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		fmt.Printf("Config file: %s\n\n", path)

		d := appConfig.Debate
		fmt.Println("Debate:")
		fmt.Printf("  Roles: buy=%s sell=%s judge=%s\n", d.Buy, d.Sell, d.Judge)
		fmt.Printf("  Max steps: %d, max turns: %d (web: %d)\n", d.MaxSteps, d.MaxTurns, d.WebMaxTurns)
		fmt.Printf("  Temperatures: buy=%.1f sell=%.1f judge=%.1f\n", d.BuyTemperature, d.SellTemperature, d.JudgeTemperature)

		r := appConfig.Retry
		fmt.Printf("\nRetry: %d attempts, %s initial backoff, x%.1f\n", r.MaxRetries, r.InitialBackoff, r.Multiplier)
		fmt.Printf("Storage: %s %s\n", appConfig.Storage.Driver, appConfig.Storage.DSN)
		fmt.Printf("Reports: %s (%d pipelines)\n", appConfig.Gather.ReportsDir, len(appConfig.Gather.Pipelines))

		fmt.Println("\nProviders:")
		for _, name := range appConfig.ProviderNames() {
			p := appConfig.Providers[name]
			status := "disabled"
			if p.Enabled {
				status = "enabled"
			}
			key := ""
			if p.APIKey != "" {
				key = ", api key set"
			}
			fmt.Printf("  %s: %s %s (timeout: %s%s)\n", name, p.Type, status, p.Timeout, key)
		}

		if err := appConfig.Validate(); err != nil {
			fmt.Printf("\nWarning: %v\n", err)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		if err := os.MkdirAll(strings.TrimSuffix(path, "/config.yaml"), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(config.GenerateExample()), 0644); err != nil {
			return err
		}

		fmt.Printf("Created config at: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// ============================================================================
// SERVE COMMAND
// ============================================================================

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("port") && appConfig.Server.Port != 0 {
			servePort = appConfig.Server.Port
		}

		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		eng, err := getEngine(store)
		if err != nil {
			return err
		}

		fmt.Printf("\nStarting tradedebate API on http://localhost:%d\n\n", servePort)
		fmt.Println("Available endpoints:")
		fmt.Printf("  GET  http://localhost:%d/api/runs             - List runs\n", servePort)
		fmt.Printf("  POST http://localhost:%d/api/runs             - Start a run\n", servePort)
		fmt.Printf("  GET  http://localhost:%d/api/runs/:id/stream  - Stream a run\n", servePort)
		fmt.Println("\nPress Ctrl+C to stop the server")

		return startWebServer(eng, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8182, "Server port")
}

func startWebServer(eng *engine.Engine, port int) error {
	h := handlers.New(eng, handlers.WithWebMaxTurns(appConfig.Debate.WebMaxTurns))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
		h.Close()
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		h.Close()
		return fmt.Errorf("server error: %w", err)
	}
	<-done
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func findRunByPrefix(eng *engine.Engine, prefix string) (string, error) {
	runs, err := eng.ListRuns(100, 0)
	if err != nil {
		return "", err
	}
	for _, r := range runs {
		if strings.HasPrefix(r.ID, prefix) {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("run not found: %s", prefix)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var speakerTitles = map[core.Speaker]string{
	core.SpeakerBuy:   "BUY",
	core.SpeakerSell:  "SELL",
	core.SpeakerJudge: "JUDGE",
}

func printMessage(msg *core.StoredMessage) {
	if msg.Speaker == core.SpeakerJudge {
		return
	}
	fmt.Printf("\n[%s] %s\n", speakerTitles[msg.Speaker], msg.Stage)
	fmt.Println(strings.Repeat("─", 40))
	fmt.Println(msg.Content)
}

// printVerdict prints the judge's message under a banner.
func printVerdict(content string) {
	fmt.Printf("\n%s\n", strings.Repeat("═", 60))
	fmt.Println("  TRADING VERDICT")
	fmt.Println(strings.Repeat("═", 60))
	fmt.Println(content)
}
