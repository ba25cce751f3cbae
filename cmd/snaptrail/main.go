package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akshat/snaptrail/internal/agent"
	"github.com/akshat/snaptrail/internal/browser"
	"github.com/akshat/snaptrail/internal/observability"
	"github.com/akshat/snaptrail/internal/recorder"
	"github.com/akshat/snaptrail/internal/store"
	"github.com/akshat/snaptrail/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	startURL := flag.String("url", "https://example.com", "URL the demo walk starts at")
	history := flag.Bool("history", false, "list recorded runs and exit")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)

	var index *store.Index
	if cfg.Index.Enabled {
		var err error
		index, err = store.NewIndex(cfg.Index.Path)
		if err != nil {
			log.Printf("Warning: run index disabled: %v", err)
			index = nil
		} else {
			defer index.Close()
		}
	}

	if *history {
		printHistory(index)
		return
	}

	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the status line's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	logger := observability.NewLogger()

	rec := recorder.New(recorder.Options{
		BaseDir:      cfg.Recorder.ScreenshotDir,
		DirPrefix:    cfg.Recorder.DirPrefix,
		SavePlans:    cfg.Recorder.SavePlans,
		SavePageText: cfg.Recorder.SavePageText,
	}, logger, index)

	session := browser.NewSession(cfg.Browser.Headless, time.Duration(cfg.Browser.TimeoutSeconds)*time.Second)
	defer session.Close()

	host := agent.New(session)
	recorder.Attach(host, rec, session.State)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live status line (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	result, err := host.Run(ctx, demoScript(*startURL))

	observability.CleanupTerminal()

	if err != nil {
		log.Fatalf("run failed: %v", err)
	}
	log.Printf("run finished: status=%s steps=%d artifacts under %s",
		result.Status, result.Steps, cfg.Recorder.ScreenshotDir)
}

// demoScript is a scripted walk exercising every extension point: each
// output fires the step callback, its actions go through the wrapped
// MultiAct. No planning happens here.
func demoScript(url string) []agent.Output {
	return []agent.Output{
		{
			State: &agent.StateAssessment{
				NextGoal: fmt.Sprintf("open %s", url),
			},
			Actions: []agent.Action{
				{Name: "navigate", Params: map[string]any{"url": url}},
			},
		},
		{
			State: &agent.StateAssessment{
				EvaluationPreviousGoal: "page loaded",
				NextGoal:               "scroll through the page",
			},
			Actions: []agent.Action{
				{Name: "scroll"},
				{Name: "wait", Params: map[string]any{"wait_seconds": 1}},
			},
		},
	}
}

func printHistory(index *store.Index) {
	if index == nil {
		fmt.Println("run index is disabled")
		return
	}
	runs, err := index.ListRuns(20)
	if err != nil {
		log.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return
	}
	for _, r := range runs {
		fmt.Printf("%s  %-8s  %2d steps  %s  %s\n",
			r["started_at"], r["status"], r["steps"], r["id"], r["base_dir"])
	}
}
