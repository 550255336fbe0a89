package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xaenox/journal-engine/internal/engine"
	"github.com/xaenox/journal-engine/internal/models"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your journal",
		Long: "Ask answers a question from your journal entries and cites the entries it\n" +
			"drew from. Pass --conversation to continue an existing thread.",
		Args: cobra.MinimumNArgs(1),
		Run:  runAsk,
	}

	cmd.Flags().String("conversation", "", "Conversation id to continue")
	cmd.Flags().StringP("provider", "p", "ollama", "Model provider: ollama or openai")
	cmd.Flags().StringP("model", "m", "", "Model name (provider default if empty)")
	cmd.Flags().Int("max-entries", -1, "Max context entries (0 answers without context)")
	cmd.Flags().StringSlice("tag", nil, "Only use entries carrying one of these tags")
	cmd.Flags().String("from", "", "Only use entries on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Only use entries on or before this date (YYYY-MM-DD)")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	conversationID, _ := cmd.Flags().GetString("conversation")
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	maxEntries, _ := cmd.Flags().GetInt("max-entries")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	filters := models.SearchFilters{Tags: tags}
	if from != "" || to != "" {
		dr, err := parseDateRange(from, to)
		if err != nil {
			exitErr("parse date range", err)
		}
		filters.DateRange = dr
	}

	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	resp, err := eng.AskQuestion(cmd.Context(), engine.AskRequest{
		Question:          strings.Join(args, " "),
		ConversationID:    conversationID,
		Provider:          provider,
		Model:             model,
		Filters:           filters,
		MaxContextEntries: maxEntries,
	})
	if err != nil {
		exitErr("ask", err)
	}

	printJSON(resp)
}

func parseDateRange(from, to string) (*models.DateRange, error) {
	dr := &models.DateRange{
		From: time.Time{},
		To:   time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	var err error
	if from != "" {
		if dr.From, err = time.Parse("2006-01-02", from); err != nil {
			return nil, err
		}
	}
	if to != "" {
		if dr.To, err = time.Parse("2006-01-02", to); err != nil {
			return nil, err
		}
		// Inclusive upper bound: cover the whole day.
		dr.To = dr.To.Add(24*time.Hour - time.Second)
	}
	return dr, nil
}
