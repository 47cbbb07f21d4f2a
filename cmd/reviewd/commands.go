package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Generate and inspect performance reviews",
}

var reviewGenerateCmd = &cobra.Command{
	Use:   "generate <employee-id>",
	Short: "Generate a draft performance review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, _ := cmd.Flags().GetString("org")
		reviewType, _ := cmd.Flags().GetString("type")
		tone, _ := cmd.Flags().GetString("tone")
		strategy, _ := cmd.Flags().GetString("strategy")

		if orgID == "" {
			return fmt.Errorf("--org is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"employee_id": args[0],
			"org_id":      orgID,
		}
		if reviewType != "" {
			body["review_type"] = reviewType
		}
		if tone != "" {
			body["tone"] = tone
		}
		if strategy != "" {
			body["strategy"] = strategy
		}

		resp, err := client.post("/v1/reviews", body)
		if err != nil {
			return err
		}

		var result any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <review-id>",
	Short: "Show a stored review record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/v1/reviews/" + args[0])
		if err != nil {
			return err
		}

		var result any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	reviewGenerateCmd.Flags().String("org", "", "organization ID (required)")
	reviewGenerateCmd.Flags().String("type", "", "review type: self, manager, peer, 360, upward")
	reviewGenerateCmd.Flags().String("tone", "", "writing tone")
	reviewGenerateCmd.Flags().String("strategy", "", "confidence strategy: quality-weighted, quantity-weighted")
	reviewCmd.AddCommand(reviewGenerateCmd)
	reviewCmd.AddCommand(reviewShowCmd)
}

// --- quality ---

var qualityCmd = &cobra.Command{
	Use:   "quality <employee-id>",
	Short: "Show data-quality scores for an employee",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, _ := cmd.Flags().GetString("org")
		if orgID == "" {
			return fmt.Errorf("--org is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/v1/employees/%s/quality?org_id=%s", args[0], url.QueryEscape(orgID)))
		if err != nil {
			return err
		}

		var result struct {
			Objectives  int  `json:"objectives"`
			Feedback    int  `json:"feedback"`
			Sufficient  bool `json:"sufficient"`
			DataQuality struct {
				OKRScore      float64 `json:"okrScore"`
				FeedbackScore float64 `json:"feedbackScore"`
				OverallScore  float64 `json:"overallScore"`
			} `json:"data_quality"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus("Objectives", "%d", result.Objectives)
		printStatus("Feedback", "%d", result.Feedback)
		printStatus("OKR score", "%.0f", result.DataQuality.OKRScore)
		printStatus("Feedback score", "%.0f", result.DataQuality.FeedbackScore)
		printStatus("Overall", "%.0f", result.DataQuality.OverallScore)
		if result.Sufficient {
			printSuccess("Sufficient data for review generation")
		} else {
			printWarning("Insufficient data for review generation")
		}
		return nil
	},
}

func init() {
	qualityCmd.Flags().String("org", "", "organization ID (required)")
}

// --- recall ---

var recallCmd = &cobra.Command{
	Use:   "recall <employee-id> <query>",
	Short: "Semantic search over an employee's indexed context",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args[1:], " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/v1/employees/%s/context?q=%s&limit=%d", args[0], url.QueryEscape(query), limit)
		resp, err := client.get(path)
		if err != nil {
			return err
		}

		var results []struct {
			SourceID    string  `json:"source_id"`
			ContentType string  `json:"content_type"`
			Preview     string  `json:"preview"`
			Score       float32 `json:"score"`
		}
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [%s, score: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.ContentType, r.Score)
			fmt.Printf("  %s\n", r.Preview)
		}
		return nil
	},
}

func init() {
	recallCmd.Flags().Int("limit", 10, "maximum number of results")
}

// --- employee ---

var employeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Sync and manage employee signal data",
}

var employeeSyncCmd = &cobra.Command{
	Use:   "sync --file <snapshot.json>",
	Short: "Push an employee snapshot from the HR system of record",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		var snapshot map[string]any
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return fmt.Errorf("invalid snapshot JSON: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/v1/employees/sync", snapshot)
		if err != nil {
			return err
		}

		var result struct {
			EmployeeID string `json:"employee_id"`
			JobsQueued int    `json:"jobs_queued"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Synced employee %s (%d index jobs queued)", result.EmployeeID, result.JobsQueued)
		return nil
	},
}

var employeeReindexCmd = &cobra.Command{
	Use:   "reindex <employee-id>",
	Short: "Re-queue vector indexing for all of an employee's signals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, _ := cmd.Flags().GetString("org")
		if orgID == "" {
			return fmt.Errorf("--org is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(fmt.Sprintf("/v1/employees/%s/reindex?org_id=%s", args[0], url.QueryEscape(orgID)), nil)
		if err != nil {
			return err
		}

		var result struct {
			JobsQueued int `json:"jobs_queued"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued %d index jobs", result.JobsQueued)
		return nil
	},
}

var employeePurgeCmd = &cobra.Command{
	Use:   "purge-vectors <employee-id>",
	Short: "Delete all of an employee's stored vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete all vectors for employee %s. Use --confirm to proceed.", args[0])
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(fmt.Sprintf("/v1/employees/%s/vectors", args[0]))
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		printSuccess("Purged vectors for employee %s", args[0])
		return nil
	},
}

func init() {
	employeeSyncCmd.Flags().String("file", "", "path to snapshot JSON file")
	employeeReindexCmd.Flags().String("org", "", "organization ID (required)")
	employeePurgeCmd.Flags().Bool("confirm", false, "confirm vector purge")
	employeeCmd.AddCommand(employeeSyncCmd)
	employeeCmd.AddCommand(employeeReindexCmd)
	employeeCmd.AddCommand(employeePurgeCmd)
}

// --- document ---

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Attach documents to an employee",
}

var documentAddCmd = &cobra.Command{
	Use:   "add <employee-id>",
	Short: "Attach a document and queue it for indexing",
	Long: `Attach a document and queue it for indexing.

Examples:
  reviewd document add emp-1 --text "Shipped the billing migration" --title "Q3 note"
  reviewd document add emp-1 --file self-assessment.pdf --kind pdf
  reviewd document add emp-1 --file summary.html --kind html --tags peer,q3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		kind, _ := cmd.Flags().GetString("kind")
		title, _ := cmd.Flags().GetString("title")
		tagsStr, _ := cmd.Flags().GetString("tags")

		if text == "" && file == "" {
			return fmt.Errorf("one of --text or --file is required")
		}

		var tags []string
		if tagsStr != "" {
			tags = strings.Split(tagsStr, ",")
			for i := range tags {
				tags[i] = strings.TrimSpace(tags[i])
			}
		}

		req := map[string]any{"source": "cli"}
		if title != "" {
			req["title"] = title
		}
		if tags != nil {
			req["tags"] = tags
		}
		if kind != "" {
			req["kind"] = kind
		}

		switch {
		case text != "":
			req["content"] = text
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			if kind == "pdf" {
				req["content_base64"] = base64.StdEncoding.EncodeToString(data)
			} else {
				req["content"] = string(data)
			}
			if title == "" {
				req["title"] = filepath.Base(file)
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/v1/employees/"+args[0]+"/documents", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued document %s", result["id"])
		return nil
	},
}

func init() {
	documentAddCmd.Flags().String("text", "", "text content to attach")
	documentAddCmd.Flags().String("file", "", "file path to attach")
	documentAddCmd.Flags().String("kind", "", "content kind: text, html, pdf")
	documentAddCmd.Flags().String("title", "", "title for the document")
	documentAddCmd.Flags().String("tags", "", "comma-separated tags")
	documentCmd.AddCommand(documentAddCmd)
}
