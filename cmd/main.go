package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finsight/internal/bootstrap"
	"finsight/internal/domain/analysis"
)

func main() {
	symbol := flag.String("symbol", "", "Run one analysis for the symbol and print it instead of serving")
	query := flag.String("query", "", "Company name or free-text query for a one-shot run")
	skill := flag.String("skill", "", "Skill id for a one-shot run (default from runtime config)")
	provider := flag.String("provider", "", "Analysis provider for a one-shot run")
	model := flag.String("model", "", "Model for a one-shot run")
	flag.Parse()

	c := bootstrap.NewContainer()
	c.MustInit()

	if *symbol != "" || *query != "" {
		os.Exit(runOnce(c, analysis.Request{
			Symbol:   *symbol,
			Query:    *query,
			SkillID:  *skill,
			Provider: *provider,
			Model:    *model,
		}))
	}

	if err := c.Start(); err != nil {
		c.Log.Errorf("Failed to start: %v", err)
		c.Shutdown()
		os.Exit(1)
	}

	waitForShutdown(c)
	c.Shutdown()
}

// runOnce executes a single run in the foreground, prints the output as JSON
// and returns the process exit code
func runOnce(c *bootstrap.Container, req analysis.Request) int {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer c.Shutdown()

	out, err := c.Business.Analysis.RunSynchronously(ctx, req)
	if err != nil {
		c.Log.Errorw("Analysis failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		return 1
	}
	return 0
}

// waitForShutdown blocks until a termination signal or an internal cancel
func waitForShutdown(c *bootstrap.Container) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		c.Log.Infow("Shutting down...", "signal", sig.String())
	case <-c.Context.Done():
		c.Log.Info("Shutting down after internal failure...")
	}
}
