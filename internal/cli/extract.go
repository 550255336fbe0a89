package cli

import (
	"github.com/spf13/cobra"
)

func addExtractFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("provider", "p", "ollama", "Model provider: ollama or openai")
	cmd.Flags().StringP("model", "m", "", "Model name (provider default if empty)")
	cmd.Flags().Int("max-tags", 0, "Max suggestions per entry (0 uses the configured default)")
	cmd.Flags().Float64("threshold", -1, "Min suggestion confidence (negative uses the configured default)")
}

func extractFlags(cmd *cobra.Command) (provider, model string, maxTags int, threshold float64) {
	provider, _ = cmd.Flags().GetString("provider")
	model, _ = cmd.Flags().GetString("model")
	maxTags, _ = cmd.Flags().GetInt("max-tags")
	threshold, _ = cmd.Flags().GetFloat64("threshold")
	return
}

func init() {
	extract := &cobra.Command{
		Use:   "extract [entry-id]",
		Short: "Suggest vocabulary tags for one entry",
		Args:  cobra.ExactArgs(1),
		Run:   runExtract,
	}
	addExtractFlags(extract)

	bulk := &cobra.Command{
		Use:   "bulk-extract [entry-id...]",
		Short: "Suggest tags for many entries",
		Long: "Bulk-extract runs tag extraction over every given entry. Entries are\n" +
			"processed independently; a failure on one entry is reported in its result\n" +
			"and does not stop the rest.",
		Args: cobra.MinimumNArgs(1),
		Run:  runBulkExtract,
	}
	addExtractFlags(bulk)

	RootCmd.AddCommand(extract, bulk)
}

func runExtract(cmd *cobra.Command, args []string) {
	provider, model, maxTags, threshold := extractFlags(cmd)

	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	result, err := eng.ExtractTagsForEntry(cmd.Context(), args[0], provider, model, maxTags, threshold)
	if err != nil {
		exitErr("extract tags", err)
	}
	printJSON(result)
}

func runBulkExtract(cmd *cobra.Command, args []string) {
	provider, model, maxTags, threshold := extractFlags(cmd)

	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	results, err := eng.BulkExtractTags(cmd.Context(), args, provider, model, maxTags, threshold)
	if err != nil {
		exitErr("bulk extract", err)
	}
	printJSON(results)
}
