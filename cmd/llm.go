package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/llm"
	"github.com/abhisek/stepwise/internal/store"
)

var (
	llmHeader = lipgloss.NewStyle().Bold(true).Foreground(statsAccent)
	llmFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	llmRule   = strings.Repeat("─", 78)
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect generated hints and model usage",
}

var llmHintsCmd = &cobra.Command{
	Use:   "hints",
	Short: "List recent hint generations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		failed, _ := cmd.Flags().GetBool("failed")

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.Events().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit, Purpose: llm.PurposeHint})
		if err != nil {
			return fmt.Errorf("query hint events: %w", err)
		}
		if failed {
			events = failedOnly(events)
		}
		if len(events) == 0 {
			fmt.Println("No hints generated yet.")
			return nil
		}

		fmt.Println(llmHeader.Render(fmt.Sprintf("%-5s  %-16s  %-20s  %7s  %s", "ID", "When", "Model", "Ms", "Hint")))
		fmt.Println(llmRule)
		for _, e := range events {
			line := fmt.Sprintf("%-5d  %-16s  %-20s  %7d  %s",
				e.ID,
				e.Timestamp.Local().Format("Jan 2 15:04:05"),
				truncate(e.Model, 20),
				e.LatencyMs,
				hintPreview(e),
			)
			if !e.Success {
				line = llmFailed.Render(line)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the prompt and reply of one model call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.Events().GetLLMEvent(cmd.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("event %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}

		fmt.Println(renderEvent(e))
		return nil
	},
}

var llmCostCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate spend per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		usage, err := s.Events().LLMUsageByModel(cmd.Context())
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		if len(usage) == 0 {
			fmt.Println("No model calls recorded yet.")
			return nil
		}
		byPurpose, err := s.Events().LLMUsageByPurpose(cmd.Context())
		if err != nil {
			return fmt.Errorf("query purpose usage: %w", err)
		}
		fmt.Println(renderCost(usage))
		fmt.Println()
		fmt.Println(renderPurposes(byPurpose))
		return nil
	},
}

func failedOnly(events []store.LLMRequestEvent) []store.LLMRequestEvent {
	var out []store.LLMRequestEvent
	for _, e := range events {
		if !e.Success {
			out = append(out, e)
		}
	}
	return out
}

// hintPreview is the one-line list cell for a hint event.
func hintPreview(e store.LLMRequestEvent) string {
	if !e.Success {
		return "error: " + truncate(e.ErrorMessage, 40)
	}
	var out struct {
		Hint string `json:"hint"`
	}
	if err := json.Unmarshal([]byte(e.ResponseBody), &out); err != nil || out.Hint == "" {
		return "(unreadable reply)"
	}
	return truncate(strings.Join(strings.Fields(out.Hint), " "), 40)
}

func renderEvent(e *store.LLMRequestEvent) string {
	var b strings.Builder
	field := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", statsLabel.Render(label), value)
	}
	field("Event", fmt.Sprint(e.ID))
	field("Time", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
	field("Purpose", e.Purpose)
	field("Model", e.Provider+"/"+e.Model)
	field("Tokens", fmt.Sprintf("%d in, %d out", e.InputTokens, e.OutputTokens))
	field("Latency", fmt.Sprintf("%dms", e.LatencyMs))
	if e.ErrorMessage != "" {
		field("Error", llmFailed.Render(e.ErrorMessage))
	}

	section := func(title, body string) {
		b.WriteString("\n" + llmHeader.Render(title) + "\n" + llmRule + "\n")
		if body == "" {
			body = "(not captured)"
		}
		b.WriteString(body + "\n")
	}
	section("Prompt", e.RequestBody)
	section("Reply", indentJSON(e.ResponseBody))
	return strings.TrimRight(b.String(), "\n")
}

// indentJSON pretty-prints body when it is JSON and returns it unchanged
// otherwise.
func indentJSON(body string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(body), "", "  "); err != nil {
		return body
	}
	return buf.String()
}

func renderCost(usage []store.LLMUsage) string {
	var b strings.Builder
	b.WriteString(llmHeader.Render(fmt.Sprintf("%-28s  %6s  %10s  %10s  %10s", "Model", "Calls", "Input", "Output", "Cost")))
	b.WriteString("\n" + llmRule + "\n")

	var total float64
	var unpriced []string
	for _, u := range usage {
		cost := "?"
		if c := llm.LookupCost(u.Key); c != nil {
			usd := c.Cost(u.InputTokens, u.OutputTokens)
			total += usd
			cost = formatCost(usd)
		} else {
			unpriced = append(unpriced, u.Key)
		}
		fmt.Fprintf(&b, "%-28s  %6d  %10d  %10d  %10s\n",
			truncate(u.Key, 28), u.Calls, u.InputTokens, u.OutputTokens, cost)
	}

	b.WriteString(llmRule + "\n")
	label := "Total"
	if len(unpriced) > 0 {
		label = "Total (priced models)"
	}
	fmt.Fprintf(&b, "%-28s  %6s  %10s  %10s  %10s", label, "", "", "", formatCost(total))
	if len(unpriced) > 0 {
		fmt.Fprintf(&b, "\n\nNo pricing for: %s", strings.Join(unpriced, ", "))
	}
	return b.String()
}

func renderPurposes(usage []store.LLMUsage) string {
	parts := make([]string, len(usage))
	for i, u := range usage {
		parts[i] = fmt.Sprintf("%s %d calls, avg %dms", u.Key, u.Calls, u.AvgLatencyMs)
	}
	return statsLabel.Render("By purpose") + strings.Join(parts, "; ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmHintsCmd.Flags().IntP("limit", "n", 20, "Number of hint generations to show")
	llmHintsCmd.Flags().Bool("failed", false, "Only show failed generations")

	llmCmd.AddCommand(llmHintsCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmCostCmd)
}
