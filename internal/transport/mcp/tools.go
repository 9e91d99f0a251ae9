package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	domainquery "github.com/alanyang/interview-router/internal/domain/query"
	"github.com/alanyang/interview-router/internal/service/dispatcher"
	"github.com/alanyang/interview-router/internal/transport/ratelimit"
)

// RegisterTools registers all MCP tools on the server.
func RegisterTools(s *mcpserver.MCPServer, reg *SessionRegistry, svc *dispatcher.Service, limiter *ratelimit.PerCustomer) {
	s.AddTool(mcpmcp.NewTool("submit_query",
		mcpmcp.WithDescription("Submit a customer query for routing. Returns the query_id immediately; the assignment is made asynchronously and pushed to this session as a notification."),
		mcpmcp.WithString("customer_id", mcpmcp.Required(), mcpmcp.Description("Submitting customer")),
		mcpmcp.WithString("query_text", mcpmcp.Required(), mcpmcp.Description("Free-form research question")),
		mcpmcp.WithString("priority", mcpmcp.Description("LOW, NORMAL, HIGH or URGENT. Defaults to NORMAL.")),
		mcpmcp.WithNumber("expected_duration", mcpmcp.Description("Expected interview length in minutes. Defaults to 60.")),
		mcpmcp.WithString("category", mcpmcp.Description("Query category. Defaults to general.")),
	), submitQueryHandler(reg, svc, limiter))

	s.AddTool(mcpmcp.NewTool("get_query_status",
		mcpmcp.WithDescription("Returns the routing state of a submitted query: pending, assigned, dropped or unassignable."),
		mcpmcp.WithString("query_id", mcpmcp.Required(), mcpmcp.Description("Query id returned by submit_query")),
	), getQueryStatusHandler(svc))

	s.AddTool(mcpmcp.NewTool("get_assignment_details",
		mcpmcp.WithDescription("Returns the worker, target interviewees and estimated schedule of an assignment."),
		mcpmcp.WithString("assignment_id", mcpmcp.Required(), mcpmcp.Description("Assignment id")),
	), getAssignmentDetailsHandler(svc))

	s.AddTool(mcpmcp.NewTool("get_system_status",
		mcpmcp.WithDescription("Returns worker counts, queue size, efficiency, average wait and per-worker load."),
	), getSystemStatusHandler(svc))
}

// ── Tool handlers ─────────────────────────────────────────────────────────

func submitQueryHandler(reg *SessionRegistry, svc *dispatcher.Service, limiter *ratelimit.PerCustomer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		customerID := mcpmcp.ParseString(req, "customer_id", "")
		text := mcpmcp.ParseString(req, "query_text", "")
		priorityStr := mcpmcp.ParseString(req, "priority", "")

		var priority domainquery.Priority
		if priorityStr != "" {
			p, err := domainquery.ParsePriority(priorityStr)
			if err != nil {
				return mcpmcp.NewToolResultText("error: priority must be one of LOW, NORMAL, HIGH, URGENT"), nil
			}
			priority = p
		}
		if !limiter.Allow(customerID) {
			return mcpmcp.NewToolResultText("error: submission rate exceeded"), nil
		}

		id, err := svc.Submit(ctx, dispatcher.SubmitRequest{
			CustomerID:       customerID,
			Text:             text,
			Priority:         priority,
			ExpectedDuration: mcpmcp.ParseInt(req, "expected_duration", 0),
			Category:         mcpmcp.ParseString(req, "category", ""),
		})
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}

		if session := mcpserver.ClientSessionFromContext(ctx); session != nil {
			reg.Watch(session.SessionID(), id)
		}
		result, _ := json.Marshal(map[string]string{"query_id": id})
		return mcpmcp.NewToolResultText(string(result)), nil
	}
}

func getQueryStatusHandler(svc *dispatcher.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		st, err := svc.GetQueryStatus(ctx, mcpmcp.ParseString(req, "query_id", ""))
		if errors.Is(err, dispatcher.ErrQueryNotFound) {
			return mcpmcp.NewToolResultText("error: query not found"), nil
		}
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		data, _ := json.Marshal(st)
		return mcpmcp.NewToolResultText(string(data)), nil
	}
}

func getAssignmentDetailsHandler(svc *dispatcher.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		details, err := svc.GetAssignmentDetails(ctx, mcpmcp.ParseString(req, "assignment_id", ""))
		if errors.Is(err, dispatcher.ErrAssignmentNotFound) {
			return mcpmcp.NewToolResultText("error: assignment not found"), nil
		}
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		data, _ := json.Marshal(details)
		return mcpmcp.NewToolResultText(string(data)), nil
	}
}

func getSystemStatusHandler(svc *dispatcher.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, _ mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		data, _ := json.Marshal(svc.GetSystemStatus(ctx))
		return mcpmcp.NewToolResultText(string(data)), nil
	}
}
