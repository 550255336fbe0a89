package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	tags := &cobra.Command{
		Use:   "tags",
		Short: "Manage the controlled tag vocabulary",
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Add a custom tag to the vocabulary",
		Args:  cobra.ExactArgs(1),
		Run:   runTagsCreate,
	}
	create.Flags().String("description", "", "What the tag covers")
	create.Flags().String("category", "", "Tag category")
	create.Flags().StringSlice("alias", nil, "Alternate names for the tag")

	vocab := &cobra.Command{
		Use:   "vocab",
		Short: "Show the controlled vocabulary",
		Run:   runTagsVocab,
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show tag usage statistics",
		Run:   runTagsStats,
	}

	accept := &cobra.Command{
		Use:   "accept [entry-id] [tag]",
		Short: "Accept a tag suggestion for an entry",
		Args:  cobra.ExactArgs(2),
		Run:   runTagsAccept,
	}

	del := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a tag, its aliases and its entry associations",
		Args:  cobra.ExactArgs(1),
		Run:   runTagsDelete,
	}

	tags.AddCommand(create, vocab, stats, accept, del)
	RootCmd.AddCommand(tags)
}

func runTagsCreate(cmd *cobra.Command, args []string) {
	description, _ := cmd.Flags().GetString("description")
	category, _ := cmd.Flags().GetString("category")
	aliases, _ := cmd.Flags().GetStringSlice("alias")

	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	tag, err := eng.CreateCustomTag(cmd.Context(), args[0], description, category, aliases)
	if err != nil {
		exitErr("create tag", err)
	}
	printJSON(tag)
}

func runTagsVocab(cmd *cobra.Command, args []string) {
	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	vocabulary, err := eng.Vocabulary(cmd.Context())
	if err != nil {
		exitErr("load vocabulary", err)
	}
	printJSON(vocabulary)
}

func runTagsStats(cmd *cobra.Command, args []string) {
	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	stats, err := eng.TagStatistics(cmd.Context())
	if err != nil {
		exitErr("tag statistics", err)
	}
	if len(stats) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(stats)
}

func runTagsDelete(cmd *cobra.Command, args []string) {
	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	if err := eng.DeleteTag(cmd.Context(), args[0]); err != nil {
		exitErr("delete tag", err)
	}
	fmt.Printf(`{"ok":true,"tag":%q}`+"\n", args[0])
}

func runTagsAccept(cmd *cobra.Command, args []string) {
	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	if err := eng.AcceptTagSuggestion(cmd.Context(), args[0], args[1]); err != nil {
		exitErr("accept suggestion", err)
	}
	fmt.Printf(`{"ok":true,"entry_id":%q,"tag":%q}`+"\n", args[0], args[1])
}
