package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/talentforge/reviewd/internal/indexer"
	"github.com/talentforge/reviewd/internal/retrieval"
	"github.com/talentforge/reviewd/internal/review"
	"github.com/talentforge/reviewd/internal/storage"
)

// MCPRetriever abstracts employee-scoped semantic search for the MCP layer.
type MCPRetriever interface {
	QueryRelevantContext(ctx context.Context, employeeID, queryText string, limit int) retrieval.RelevantContext
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Generator ReviewGenerator
	Retriever MCPRetriever
}

// NewMCPServer creates an MCP server with all reviewd tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"reviewd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("reviewd: AI-assisted performance review generation over aggregated OKR and feedback signals."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_review",
			mcp.WithDescription("Generate a draft performance review for an employee from their stored OKRs, feedback, and documents."),
			mcp.WithString("employee_id", mcp.Description("Employee identifier"), mcp.Required()),
			mcp.WithString("org_id", mcp.Description("Organization identifier"), mcp.Required()),
			mcp.WithString("review_type", mcp.Description("One of: self, manager, peer, 360, upward (default manager)")),
			mcp.WithString("tone", mcp.Description("Writing tone (default professional)")),
		),
		mcpGenerateReview(deps),
	)

	s.AddTool(
		mcp.NewTool("recall_context",
			mcp.WithDescription("Semantically search an employee's indexed performance context and return relevant snippets."),
			mcp.WithString("employee_id", mcp.Description("Employee identifier"), mcp.Required()),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpRecallContext(deps),
	)

	s.AddTool(
		mcp.NewTool("add_note",
			mcp.WithDescription("Attach a free-text note to an employee and index it for future review generation."),
			mcp.WithString("employee_id", mcp.Description("Employee identifier"), mcp.Required()),
			mcp.WithString("content", mcp.Description("The note text"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Title for the note")),
			mcp.WithArray("tags", mcp.Description("Optional tags for categorization")),
		),
		mcpAddNote(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"reviewd://recent",
			"Recent Reviews",
			mcp.WithResourceDescription("Last 10 generated review records (metadata only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpGenerateReview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		employeeID, err := req.RequireString("employee_id")
		if err != nil {
			return mcpError("employee_id is required"), nil
		}
		orgID, err := req.RequireString("org_id")
		if err != nil {
			return mcpError("org_id is required"), nil
		}

		result, err := deps.Generator.Generate(ctx, review.Request{
			EmployeeID: employeeID,
			OrgID:      orgID,
			ReviewType: req.GetString("review_type", ""),
			Tone:       req.GetString("tone", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("review generation failed: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal review: %v", err)), nil
		}

		record := storage.ReviewRecord{
			ID:             uuid.New().String(),
			EmployeeID:     employeeID,
			OrgID:          orgID,
			ReviewType:     result.ReviewType,
			PayloadJSON:    string(b),
			Confidence:     result.ConfidenceScore,
			QualityOverall: result.DataQuality.OverallScore,
		}
		if err := deps.Store.SaveReviewRecord(record); err != nil {
			return mcpError(fmt.Sprintf("review generated but failed to record: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpRecallContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		employeeID, err := req.RequireString("employee_id")
		if err != nil {
			return mcpError("employee_id is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		relevant := deps.Retriever.QueryRelevantContext(ctx, employeeID, query, limit)
		if relevant.Degraded {
			return mcpError("context retrieval unavailable"), nil
		}

		type snippetResult struct {
			SourceID    string  `json:"source_id"`
			ContentType string  `json:"content_type"`
			Preview     string  `json:"preview"`
			Score       float32 `json:"score"`
		}

		results := make([]snippetResult, 0, len(relevant.OKRs)+len(relevant.Feedback))
		for _, s := range append(relevant.OKRs, relevant.Feedback...) {
			results = append(results, snippetResult{
				SourceID:    s.SourceID,
				ContentType: s.ContentType,
				Preview:     s.Preview,
				Score:       s.Score,
			})
		}
		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpAddNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		employeeID, err := req.RequireString("employee_id")
		if err != nil {
			return mcpError("employee_id is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		title := req.GetString("title", "")
		tags := req.GetStringSlice("tags", nil)

		tagsJSON := "[]"
		if len(tags) > 0 {
			b, err := json.Marshal(tags)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to marshal tags: %v", err)), nil
			}
			tagsJSON = string(b)
		}

		doc := storage.Document{
			ID:         uuid.New().String(),
			EmployeeID: employeeID,
			Title:      title,
			Content:    content,
			Source:     "mcp",
			Tags:       tagsJSON,
			CreatedAt:  time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			return mcpError(fmt.Sprintf("failed to save note: %v", err)), nil
		}

		if err := enqueueIndexJob(deps.Store, indexer.JobIndexDocument, indexer.Payload{EmployeeID: employeeID, DocumentID: doc.ID}); err != nil {
			return mcpError(fmt.Sprintf("saved note but failed to queue indexing: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored note %s", doc.ID)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Store.RecentReviewRecords("", 10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent reviews: %w", err)
		}

		type reviewSummary struct {
			ID         string  `json:"id"`
			EmployeeID string  `json:"employee_id"`
			ReviewType string  `json:"review_type"`
			Confidence float64 `json:"confidence"`
			CreatedAt  string  `json:"created_at"`
		}

		summaries := make([]reviewSummary, len(records))
		for i, rec := range records {
			summaries[i] = reviewSummary{
				ID:         rec.ID,
				EmployeeID: rec.EmployeeID,
				ReviewType: rec.ReviewType,
				Confidence: rec.Confidence,
				CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal review summaries: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
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
