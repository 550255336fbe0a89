package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	conversations := &cobra.Command{
		Use:   "conversations",
		Short: "Manage question/answer threads",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		Run:   runConversationsList,
	}

	history := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "Show the full message history of a conversation",
		Args:  cobra.ExactArgs(1),
		Run:   runConversationsHistory,
	}

	del := &cobra.Command{
		Use:   "delete [conversation-id]",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		Run:   runConversationsDelete,
	}

	conversations.AddCommand(list, history, del)
	RootCmd.AddCommand(conversations)
}

func runConversationsList(cmd *cobra.Command, args []string) {
	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	summaries, err := eng.ListConversations(cmd.Context())
	if err != nil {
		exitErr("list conversations", err)
	}
	if len(summaries) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(summaries)
}

func runConversationsHistory(cmd *cobra.Command, args []string) {
	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	messages, err := eng.ConversationHistory(cmd.Context(), args[0])
	if err != nil {
		exitErr("conversation history", err)
	}
	printJSON(messages)
}

func runConversationsDelete(cmd *cobra.Command, args []string) {
	eng, closer, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer closer()

	if err := eng.DeleteConversation(cmd.Context(), args[0]); err != nil {
		exitErr("delete conversation", err)
	}
	fmt.Printf(`{"ok":true,"conversation_id":%q}`+"\n", args[0])
}
