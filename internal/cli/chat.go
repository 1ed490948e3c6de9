package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [room] [doc-id...]",
	Short: "Re-extract documents into the room's chunk set",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRefresh,
}

var askCmd = &cobra.Command{
	Use:   "ask [room] [query...]",
	Short: "Answer a query from the room's documents and history",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAsk,
}

var editCmd = &cobra.Command{
	Use:   "edit [room] [turn-id] [query...]",
	Short: "Replace a turn's query and regenerate its answer",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runEdit,
}

var historyCmd = &cobra.Command{
	Use:   "history [room]",
	Short: "Show a room's turns in order",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var refreshDelete bool

func init() {
	refreshCmd.Flags().BoolVarP(&refreshDelete, "delete", "d", false, "remove the documents' chunks instead of replacing them")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(historyCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	result, err := current.chunks.Refresh(cmd.Context(), args[0], args[1:], refreshDelete)
	if err != nil {
		return err
	}
	printRefresh(cmd, result)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	answer, err := current.chat.AnswerQuery(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	cmd.Println(answer.ResponseText)
	if !answer.Persisted {
		cmd.PrintErrln("(query already answered before; turn not stored)")
	}
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	edited, err := current.chat.EditQuery(cmd.Context(), args[0], args[1], strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	cmd.Println(edited.ResponseText)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	turns, err := current.chat.ListTurns(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		cmd.Printf("No history for room: %s\n", args[0])
		return nil
	}
	for _, t := range turns {
		cmd.Printf("[%s] %s\n", t.ID, t.CreatedAt.Format("2006-01-02 15:04:05"))
		cmd.Printf("  Q: %s\n", t.QueryText)
		cmd.Printf("  A: %s\n\n", t.ResponseText)
	}
	return nil
}
