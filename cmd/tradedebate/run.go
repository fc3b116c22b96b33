package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/engine"
	"github.com/alienxp03/tradedebate/internal/gather"
)

var (
	topicFlag    string
	gatherFlag   bool
	buyFlag      string
	sellFlag     string
	judgeFlag    string
	maxTurnsFlag int
)

var runCmd = &cobra.Command{
	Use:   "run [ticker]",
	Short: "Run a BUY vs SELL debate",
	Long: `Run a debate about a stock. Market context is read from the report
files for the ticker (Financial_Analysis_<TICKER>.md, News_Analysis_<TICKER>.md,
Network_Analysis_<TICKER>.md and Supply_Chain_Analysis_<TICKER>.md) in the
configured reports directory.

Examples:
  tradedebate run NVDA
  tradedebate run NVDA --gather
  tradedebate run AAPL --judge anthropic/claude-sonnet-4-5
  tradedebate run --topic "Should we rotate out of semiconductors?"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDebateCommand,
}

func init() {
	runCmd.Flags().StringVarP(&topicFlag, "topic", "t", "", "Debate topic (default: derived from the ticker)")
	runCmd.Flags().BoolVarP(&gatherFlag, "gather", "g", false, "Run the configured data pipelines before loading reports")
	runCmd.Flags().StringVar(&buyFlag, "buy", "", "BUY debater backend (provider[/model])")
	runCmd.Flags().StringVar(&sellFlag, "sell", "", "SELL debater backend (provider[/model])")
	runCmd.Flags().StringVar(&judgeFlag, "judge", "", "Judge backend (provider[/model])")
	runCmd.Flags().IntVar(&maxTurnsFlag, "max-turns", 0, "Max turns recorded on the run")
}

func runDebateCommand(cmd *cobra.Command, args []string) error {
	ticker := ""
	if len(args) > 0 {
		ticker = args[0]
	}
	if ticker == "" && topicFlag == "" {
		ticker = promptTicker(os.Stdin)
		if ticker == "" {
			return fmt.Errorf("no ticker provided. Please provide a ticker to run analysis")
		}
	}

	if buyFlag != "" {
		appConfig.Debate.Buy = buyFlag
	}
	if sellFlag != "" {
		appConfig.Debate.Sell = sellFlag
	}
	if judgeFlag != "" {
		appConfig.Debate.Judge = judgeFlag
	}
	if err := appConfig.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n\nInterrupted. Stopping debate...")
			cancel()
		case <-ctx.Done():
		}
	}()

	runConfig := core.NewRunConfig{Topic: topicFlag, MaxTurns: maxTurnsFlag}
	if ticker != "" {
		data, err := loadContext(ctx, ticker)
		if err != nil {
			return err
		}
		runConfig = data.RunConfig()
		runConfig.MaxTurns = maxTurnsFlag
		if topicFlag != "" {
			runConfig.Topic = topicFlag
		}
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

	run, err := eng.CreateRun(ctx, runConfig)
	if err != nil {
		return err
	}

	fmt.Printf("\nDebate Topic: %s\n", run.Topic)
	fmt.Printf("Run: %s (BUY %s, SELL %s, Judge %s)\n", shortID(run.ID), run.Backends.Buy, run.Backends.Sell, run.Backends.Judge)
	fmt.Println("Starting trading debate workflow...")
	fmt.Println(strings.Repeat("─", 60))

	return executeRun(ctx, eng, run)
}

// loadContext gathers or loads the report files for ticker.
func loadContext(ctx context.Context, ticker string) (*gather.Data, error) {
	if gatherFlag {
		fmt.Printf("\nStarting parallel data gathering for %s...\n", strings.ToUpper(ticker))
		data, err := appConfig.CreateGatherer().Gather(ctx, ticker)
		if err != nil {
			return nil, err
		}
		for name, perr := range data.Failed {
			fmt.Printf("WARNING: pipeline %s failed: %v\n", name, perr)
		}
		fmt.Printf("Data gathering complete for %s\n", data.Ticker)
		warnMissing(data)
		return data, nil
	}

	normalized, err := core.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	data, err := gather.LoadReports(appConfig.Gather.ReportsDir, normalized)
	if err != nil {
		return nil, err
	}
	warnMissing(data)
	return data, nil
}

func warnMissing(data *gather.Data) {
	for _, r := range data.Missing {
		fmt.Printf("WARNING: %s not found.\n", r.Filename(data.Ticker))
	}
}

func executeRun(ctx context.Context, eng *engine.Engine, run *core.Run) error {
	err := eng.RunDebate(ctx, run.ID, func(msg *core.StoredMessage, r *core.Run) {
		printMessage(msg)
	})
	if err != nil {
		if errors.Is(err, engine.ErrNoMessages) {
			return fmt.Errorf("no messages in workflow result. Workflow may have failed")
		}
		if ctx.Err() != nil {
			fmt.Println("\nDebate stopped. Inspect it with: tradedebate show " + shortID(run.ID))
			return nil
		}
		return fmt.Errorf("workflow failed: %w", err)
	}

	_, messages, err := eng.GetRunWithMessages(run.ID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return fmt.Errorf("no messages in workflow result. Workflow may have failed")
	}
	printVerdict(messages[len(messages)-1].Content)
	fmt.Println("\nWorkflow completed successfully | Status: SUCCESS")
	return nil
}

// promptTicker asks for a ticker on r. It returns "" on EOF or empty input.
func promptTicker(r io.Reader) string {
	fmt.Println("\nNo ticker argument provided.")
	fmt.Print("Enter a ticker symbol to analyze: ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(line))
}
