// cmd/tools/push-diagnostics/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"storefront-push/internal/collaborator"
	"storefront-push/internal/common/config"
	apphttp "storefront-push/internal/common/http"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/diagnostics"
	"storefront-push/pkg/notification"
)

func main() {
	agentURL := flag.String("agent", "http://localhost:8090", "Push agent base URL")
	serverURL := flag.String("server", "", "Push server base URL (defaults to server.base_url)")
	owner := flag.String("owner", "", "Owner to target for the direct send; empty sends to all admins")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if *serverURL == "" {
		*serverURL = cfg.Server.BaseURL
	}

	client := apphttp.NewClient(config.GetDuration(cfg.Server.RequestTimeout))
	agent := diagnostics.NewHTTPAgent(strings.TrimRight(*agentURL, "/")+"/sw/diagnostics", client)
	server := collaborator.New(*serverURL, client)

	dcfg := diagnostics.DefaultConfig()
	dcfg.StepDelay = config.GetDuration(cfg.Diagnostics.StepDelay)
	dcfg.LocalTestDelay = config.GetDuration(cfg.Diagnostics.LocalTestDelay)
	if cfg.Diagnostics.PingTimeout > 0 {
		dcfg.PingTimeout = config.GetDuration(cfg.Diagnostics.PingTimeout)
	}
	dcfg.OwnerID = *owner
	dcfg.URL = cfg.Push.DefaultURL
	dcfg.Display = notification.Display{
		Icon:               cfg.Push.Display.Icon,
		Badge:              cfg.Push.Display.Badge,
		Vibrate:            cfg.Push.Display.Vibrate,
		RequireInteraction: cfg.Push.Display.RequireInteraction,
		Renotify:           cfg.Push.Display.Renotify,
		OpenActionTitle:    cfg.Push.Display.OpenActionTitle,
		CloseActionTitle:   cfg.Push.Display.CloseActionTitle,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := diagnostics.NewLog()
	runner := diagnostics.NewRunner(dcfg, agent, server, log, logger.NewStructured("warn", "console", "stderr"))

	fmt.Printf("Running push diagnostics against agent %s and server %s\n\n", *agentURL, *serverURL)
	start := time.Now()
	report, err := runner.RunAll(ctx)

	if *asJSON && report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
	} else if report != nil {
		for _, e := range report.Entries {
			fmt.Println(e.String())
		}
		fmt.Printf("\n%d passed, %d failed in %s\n", report.Passed, report.Failed, time.Since(start).Round(time.Millisecond))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "run interrupted: %v\n", err)
		os.Exit(2)
	}
	if report.Failed > 0 {
		os.Exit(1)
	}
}
