package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/dais/internal/contacts"
	"github.com/kalambet/dais/internal/docstore"
	"github.com/kalambet/dais/internal/household"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Household       *household.Store
	Completer       *household.Completer
	Contacts        *contacts.Store
	Progress        Progress // optional; completions are credited to the demo user when set
	StatsWindowDays int
	Now             func() time.Time
}

func (d MCPDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewMCPServer creates an MCP server with all dais tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"dais",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("dais: household routine cards and a personal contact log."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("list_household_cards",
			mcp.WithDescription("List household cards with their tasks, ordered by weekday."),
			mcp.WithNumber("weekday", mcp.Description("Only cards for this weekday (1 = Monday ... 7 = Sunday)")),
		),
		mcpListCards(deps),
	)

	s.AddTool(
		mcp.NewTool("complete_household_card",
			mcp.WithDescription("Mark a household card as done. Records a program run, a history entry and a journal line."),
			mcp.WithString("card_id", mcp.Description("Card id"), mcp.Required()),
			mcp.WithArray("completed_task_ids", mcp.Description("Ids of the card tasks that were done")),
			mcp.WithString("note", mcp.Description("Optional note")),
		),
		mcpCompleteCard(deps),
	)

	s.AddTool(
		mcp.NewTool("log_contact",
			mcp.WithDescription("Record an interaction with a contact."),
			mcp.WithString("person_id", mcp.Description("Contact id"), mcp.Required()),
			mcp.WithString("activity", mcp.Description("One of whatsapp, call, email, meeting, video_call"), mcp.Required()),
			mcp.WithString("note", mcp.Description("Optional note")),
		),
		mcpLogContact(deps),
	)

	s.AddTool(
		mcp.NewTool("contact_stats",
			mcp.WithDescription("Per-activity interaction counts and percentages for contacts."),
			mcp.WithArray("person_ids", mcp.Description("Contact ids (all contacts when omitted)")),
			mcp.WithNumber("days", mcp.Description("Look-back window in days (default 30)")),
		),
		mcpContactStats(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"household://week",
			"Household Week",
			mcp.WithResourceDescription("Household cards completed in the current week"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceWeek(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"contacts://overview",
			"Contacts Overview",
			mcp.WithResourceDescription("All contacts with assignments and interaction stats"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceContacts(deps),
	)

	return s
}

func mcpListCards(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		weekday := req.GetInt("weekday", 0)

		cards, err := deps.Household.ListCardsWithTasks(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list cards: %v", err)), nil
		}
		if weekday != 0 {
			filtered := []household.CardWithTasks{}
			for _, c := range cards {
				if c.Weekday == weekday {
					filtered = append(filtered, c)
				}
			}
			cards = filtered
		}
		return mcpJSON(cards)
	}
}

func mcpCompleteCard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cardID, err := req.RequireString("card_id")
		if err != nil {
			return mcpError("card_id is required"), nil
		}

		var userID string
		if deps.Progress != nil {
			user, err := deps.Progress.GetOrCreateDemoUser(ctx, "", "")
			if err != nil {
				return mcpError(fmt.Sprintf("failed to resolve user: %v", err)), nil
			}
			userID = user.ID
		}

		result, err := deps.Completer.Complete(ctx, household.Completion{
			UserID:           userID,
			CardID:           cardID,
			CompletedTaskIDs: req.GetStringSlice("completed_task_ids", nil),
			Note:             req.GetString("note", ""),
		})
		if errors.Is(err, docstore.ErrNotFound) {
			return mcpError(err.Error()), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to complete card: %v", err)), nil
		}
		return mcpJSON(result)
	}
}

func mcpLogContact(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		personID, err := req.RequireString("person_id")
		if err != nil {
			return mcpError("person_id is required"), nil
		}
		activity, err := req.RequireString("activity")
		if err != nil {
			return mcpError("activity is required"), nil
		}

		in := contacts.LogInput{PersonID: personID, Activity: contacts.Activity(activity)}
		if note := req.GetString("note", ""); note != "" {
			in.Note = &note
		}
		l, err := deps.Contacts.AppendLog(ctx, in)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Logged %s for %s", l.Activity.Label(), personID)), nil
	}
}

func mcpContactStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		days := req.GetInt("days", deps.StatsWindowDays)
		if days <= 0 {
			days = contacts.DefaultStatsWindowDays
		}

		ids := req.GetStringSlice("person_ids", nil)
		if len(ids) == 0 {
			defs, err := deps.Contacts.ListContacts(ctx)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to list contacts: %v", err)), nil
			}
			for _, d := range defs {
				ids = append(ids, d.ID)
			}
		}

		stats, err := deps.Contacts.GetStats(ctx, ids, days)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to compute stats: %v", err)), nil
		}
		return mcpJSON(stats)
	}
}

func mcpResourceWeek(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		from, to := household.WeekRange(deps.now())
		entries, err := deps.Household.ListEntries(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to list entries: %w", err)
		}

		summaries := make([]household.EntrySummary, 0, len(entries))
		for _, e := range entries {
			summaries = append(summaries, household.Summarize(e))
		}
		return mcpResourceJSON(req.Params.URI, summaries)
	}
}

func mcpResourceContacts(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		days := deps.StatsWindowDays
		if days <= 0 {
			days = contacts.DefaultStatsWindowDays
		}
		payload, err := deps.Contacts.LoadPayload(ctx, days)
		if err != nil {
			return nil, fmt.Errorf("failed to load contacts: %w", err)
		}
		return mcpResourceJSON(req.Params.URI, payload)
	}
}

func mcpResourceJSON(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
