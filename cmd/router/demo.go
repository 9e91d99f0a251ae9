package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyang/interview-router/internal/config"
	domainquery "github.com/alanyang/interview-router/internal/domain/query"
	"github.com/alanyang/interview-router/internal/service/dispatcher"
	"github.com/alanyang/interview-router/internal/wire"
)

type demoQuery struct {
	customer string
	text     string
	priority domainquery.Priority
}

var demoQueries = []demoQuery{
	{"CUST_001", "What are some favorites in the headphones category and what makes them successful", domainquery.PriorityNormal},
	{"CUST_002", "What do users think of my airfryer lineup of the brand COSORI", domainquery.PriorityHigh},
	{"CUST_003", "What features do popular non-analog watches on the market have", domainquery.PriorityNormal},
	{"CUST_004", "How does battery life play into consumer appeal", domainquery.PriorityUrgent},
	{"CUST_005", "Why are electric toothbrushes popular", domainquery.PriorityLow},
	{"CUST_006", "What makes a good fitness tracker", domainquery.PriorityNormal},
	{"CUST_007", "Kitchen appliance preferences for small apartments", domainquery.PriorityHigh},
}

func newDemoCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Submit sample queries and print the resulting assignments",
		Long: "Runs the router in-process without HTTP, submits a fixed set of customer\n" +
			"queries across all priorities, and prints the system status and every\n" +
			"assignment as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(logLevel); err != nil {
				return err
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), cfg, wait)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to router config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to wait for queries to settle")
	return cmd
}

func runDemo(ctx context.Context, out io.Writer, cfg *config.Config, wait time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app, err := wire.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer app.Close()

	done := make(chan error, 1)
	go func() { done <- app.RunHeadless(ctx) }()

	ids := make([]string, 0, len(demoQueries))
	for _, q := range demoQueries {
		id, err := app.Dispatcher.Submit(ctx, dispatcher.SubmitRequest{
			CustomerID: q.customer,
			Text:       q.text,
			Priority:   q.priority,
		})
		if err != nil {
			return fmt.Errorf("submit %s: %w", q.customer, err)
		}
		ids = append(ids, id)
	}

	statuses := settle(ctx, app.Dispatcher, ids, wait)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	fmt.Fprintln(out, "== queries ==")
	if err := enc.Encode(statuses); err != nil {
		return fmt.Errorf("encode queries: %w", err)
	}

	var details []dispatcher.AssignmentDetails
	for _, st := range statuses {
		if st.AssignmentID == "" {
			continue
		}
		d, err := app.Dispatcher.GetAssignmentDetails(ctx, st.AssignmentID)
		if err != nil {
			return fmt.Errorf("assignment %s: %w", st.AssignmentID, err)
		}
		details = append(details, d)
	}
	fmt.Fprintln(out, "== assignments ==")
	if err := enc.Encode(details); err != nil {
		return fmt.Errorf("encode assignments: %w", err)
	}

	fmt.Fprintln(out, "== system ==")
	if err := enc.Encode(app.Dispatcher.GetSystemStatus(ctx)); err != nil {
		return fmt.Errorf("encode system status: %w", err)
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// settle polls until no query is pending or the wait elapses.
func settle(ctx context.Context, svc *dispatcher.Service, ids []string, wait time.Duration) []dispatcher.QueryStatus {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		statuses := make([]dispatcher.QueryStatus, 0, len(ids))
		pending := false
		for _, id := range ids {
			st, err := svc.GetQueryStatus(ctx, id)
			if err != nil {
				continue
			}
			if st.State == domainquery.StatePending {
				pending = true
			}
			statuses = append(statuses, st)
		}
		if !pending || time.Now().After(deadline) {
			return statuses
		}
		select {
		case <-ctx.Done():
			return statuses
		case <-ticker.C:
		}
	}
}
