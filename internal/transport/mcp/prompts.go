package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/interview-router/internal/service/dispatcher"
)

// RegisterPrompts registers the capacity briefing prompt. It gives a client
// the live worker picture before it decides on a priority.
func RegisterPrompts(s *mcpserver.MCPServer, svc *dispatcher.Service) {
	s.AddPrompt(
		mcpmcp.NewPrompt("capacity_briefing",
			mcpmcp.WithPromptDescription("Current worker availability and queue pressure, for choosing a query priority."),
		),
		briefingHandler(svc),
	)
}

func briefingHandler(svc *dispatcher.Service) mcpserver.PromptHandlerFunc {
	return func(ctx context.Context, _ mcpmcp.GetPromptRequest) (*mcpmcp.GetPromptResult, error) {
		return mcpmcp.NewGetPromptResult(
			"Interview router capacity briefing",
			[]mcpmcp.PromptMessage{
				mcpmcp.NewPromptMessage(
					mcpmcp.RoleUser,
					mcpmcp.TextContent{
						Type: "text",
						Text: briefing(svc.GetSystemStatus(ctx)),
					},
				),
			},
		), nil
	}
}

func briefing(st dispatcher.SystemStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d interviewers available, %d queries queued, efficiency %.2f%%, average wait %.2f min.\n",
		st.AvailableWorkers, st.TotalWorkers, st.QueueSize, st.EfficiencyPercent, st.AverageWaitMinutes)
	for _, w := range st.Workers {
		fmt.Fprintf(&b, "- %s (%s): %s, load %d/%d, specialties %s\n",
			w.Name, w.ID, w.Status, w.CurrentLoad, w.MaxCapacity, strings.Join(w.Specialties, ", "))
	}
	b.WriteString("Use URGENT only when a result is needed before the queue drains; HIGH is applied automatically when no interviewer is free.")
	return b.String()
}
