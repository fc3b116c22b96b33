// Package gather produces the market-context reports a debate argues over.
//
// Analysis pipelines run concurrently and write their reports to a
// directory; the gatherer then loads whatever reports exist for the
// ticker. A failing pipeline only costs its own report.
package gather

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/provider/command"
)

// TickerPlaceholder is replaced by the ticker in pipeline arguments.
const TickerPlaceholder = "{ticker}"

// Report identifies one kind of analysis report.
type Report string

const (
	ReportFinancial   Report = "Financial_Analysis"
	ReportNews        Report = "News_Analysis"
	ReportNetwork     Report = "Network_Analysis"
	ReportSupplyChain Report = "Supply_Chain_Analysis"
)

// Reports lists every report the loader looks for, in load order.
var Reports = []Report{ReportFinancial, ReportNews, ReportNetwork, ReportSupplyChain}

// Optional reports do not produce a warning when missing.
func (r Report) Optional() bool {
	return r == ReportSupplyChain
}

// Filename returns the report file name for ticker, e.g. News_Analysis_ACME.md.
func (r Report) Filename(ticker string) string {
	return fmt.Sprintf("%s_%s.md", r, ticker)
}

// Pipeline produces one or more reports for a ticker.
type Pipeline interface {
	Name() string
	Run(ctx context.Context, ticker string) error
}

// CommandPipeline runs an external analyzer. Every occurrence of
// TickerPlaceholder in Args is replaced before the command starts.
type CommandPipeline struct {
	PipelineName string
	Command      string
	Args         []string
	Dir          string
	Timeout      time.Duration
}

// Name returns the pipeline name, defaulting to the command.
func (p *CommandPipeline) Name() string {
	if p.PipelineName != "" {
		return p.PipelineName
	}
	return p.Command
}

// Run executes the analyzer once for ticker.
func (p *CommandPipeline) Run(ctx context.Context, ticker string) error {
	args := make([]string, len(p.Args))
	for i, a := range p.Args {
		args[i] = strings.ReplaceAll(a, TickerPlaceholder, ticker)
	}

	out, err := command.Run(ctx, command.Spec{
		Command: p.Command,
		Args:    args,
		Dir:     p.Dir,
		Timeout: p.Timeout,
	})
	if err != nil {
		return err
	}
	slog.Debug("Pipeline output", "pipeline", p.Name(), "output_len", len(out))
	return nil
}

// Data is the loaded context for one ticker.
type Data struct {
	Ticker          string
	Topic           string
	FinancialData   string
	NewsData        string
	NetworkAnalysis string
	SupplyChainData string

	// Missing lists required reports that were not found.
	Missing []Report

	// Failed maps pipeline names to their errors.
	Failed map[string]error
}

// RunConfig returns a run configuration carrying the gathered context.
func (d *Data) RunConfig() core.NewRunConfig {
	return core.NewRunConfig{
		Topic:           d.Topic,
		Ticker:          d.Ticker,
		FinancialData:   d.FinancialData,
		NewsData:        d.NewsData,
		NetworkAnalysis: d.NetworkAnalysis,
		SupplyChainData: d.SupplyChainData,
	}
}

func (d *Data) set(r Report, content string) {
	switch r {
	case ReportFinancial:
		d.FinancialData = content
	case ReportNews:
		d.NewsData = content
	case ReportNetwork:
		d.NetworkAnalysis = content
	case ReportSupplyChain:
		d.SupplyChainData = content
	}
}

// Topic returns the debate question for a ticker.
func Topic(ticker string) string {
	return core.TopicForTicker(ticker)
}

// Gatherer runs pipelines and loads their reports.
type Gatherer struct {
	reportsDir  string
	pipelines   []Pipeline
	concurrency int
}

// New creates a gatherer reading reports from reportsDir.
func New(reportsDir string, pipelines ...Pipeline) *Gatherer {
	if reportsDir == "" {
		reportsDir = "."
	}
	return &Gatherer{reportsDir: reportsDir, pipelines: pipelines}
}

// SetConcurrency bounds how many pipelines run at once. Zero or less
// runs them all together.
func (g *Gatherer) SetConcurrency(n int) {
	g.concurrency = n
}

// Concurrency returns the pipeline limit, or 0 when unbounded.
func (g *Gatherer) Concurrency() int {
	if g.concurrency < 0 {
		return 0
	}
	return g.concurrency
}

// ReportsDir returns the directory reports are read from.
func (g *Gatherer) ReportsDir() string {
	return g.reportsDir
}

// Gather runs the pipelines concurrently (up to the concurrency limit),
// waits for all of them and then
// loads the reports. Pipeline failures are recorded in Data.Failed and
// never stop the other pipelines. An error is returned only for an
// invalid ticker, a canceled context, or an unreadable report.
func (g *Gatherer) Gather(ctx context.Context, ticker string) (*Data, error) {
	ticker, err := core.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	failed := g.runPipelines(ctx, ticker)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := LoadReports(g.reportsDir, ticker)
	if err != nil {
		return nil, err
	}
	data.Failed = failed
	return data, nil
}

func (g *Gatherer) runPipelines(ctx context.Context, ticker string) map[string]error {
	if len(g.pipelines) == 0 {
		return nil
	}

	slog.Info("Starting parallel data gathering", "ticker", ticker, "pipelines", len(g.pipelines))
	start := time.Now()

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
		eg     errgroup.Group
	)
	if limit := g.Concurrency(); limit > 0 {
		eg.SetLimit(limit)
	}
	for _, p := range g.pipelines {
		eg.Go(func() error {
			if err := p.Run(ctx, ticker); err != nil {
				slog.Warn("Data pipeline failed", "pipeline", p.Name(), "ticker", ticker, "error", err)
				mu.Lock()
				failed[p.Name()] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	slog.Info("Data gathering complete",
		"ticker", ticker,
		"failed", len(failed),
		"duration", time.Since(start),
	)
	return failed
}

// LoadReports reads every known report for ticker from dir. Missing files
// yield empty context; required ones are listed in Data.Missing.
func LoadReports(dir, ticker string) (*Data, error) {
	data := &Data{Ticker: ticker, Topic: Topic(ticker)}

	for _, r := range Reports {
		path := filepath.Join(dir, r.Filename(ticker))
		content, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read report %s: %w", path, err)
			}
			if !r.Optional() {
				slog.Warn("Report not found", "file", r.Filename(ticker), "dir", dir)
				data.Missing = append(data.Missing, r)
			}
			continue
		}
		data.set(r, string(content))
	}

	return data, nil
}
