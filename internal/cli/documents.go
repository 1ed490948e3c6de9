package cli

import (
	"github.com/spf13/cobra"

	"chatmate.app/chatmate/internal/core"
	"chatmate.app/chatmate/internal/logger"
	"chatmate.app/chatmate/internal/watch"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage a room's documents",
}

var documentsAddCmd = &cobra.Command{
	Use:   "add [room] [path-or-url]",
	Short: "Register a document and refresh the room's chunks",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsAdd,
}

var documentsListCmd = &cobra.Command{
	Use:   "list [room]",
	Short: "List a room's documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsList,
}

var documentsRemoveCmd = &cobra.Command{
	Use:   "remove [room] [doc-id]",
	Short: "Remove a document and its chunks",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsRemove,
}

var documentsWatchCmd = &cobra.Command{
	Use:   "watch [room]",
	Short: "Refresh chunks whenever a file document changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsWatch,
}

var (
	documentTitle  string
	documentKind   string
	documentUpload bool
)

func init() {
	documentsAddCmd.Flags().StringVarP(&documentTitle, "title", "t", "", "document title (defaults to the file or URL name)")
	documentsAddCmd.Flags().StringVarP(&documentKind, "kind", "k", "", "file, link or object (guessed from the location when empty)")
	documentsAddCmd.Flags().BoolVar(&documentUpload, "upload", false, "copy the file into object storage")

	documentsCmd.AddCommand(documentsAddCmd)
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsRemoveCmd)
	documentsCmd.AddCommand(documentsWatchCmd)
	rootCmd.AddCommand(documentsCmd)
}

func printRefresh(cmd *cobra.Command, r *core.RefreshResult) {
	if r == nil {
		return
	}
	cmd.Printf("Refreshed: %d extracted, %d failed, %d chunk(s) cached\n", len(r.Extracted), len(r.Failed), r.Chunks)
	for _, id := range r.Failed {
		cmd.Printf("  failed: %s\n", id)
	}
}

func runDocumentsAdd(cmd *cobra.Command, args []string) error {
	doc, result, err := current.documents.AddDocument(cmd.Context(), args[0], core.NewDocument{
		Title:    documentTitle,
		Kind:     documentKind,
		Location: args[1],
		Upload:   documentUpload,
	})
	if err != nil {
		return err
	}
	cmd.Printf("Added document %s (%s, %s)\n", doc.ID, doc.Kind, doc.Location)
	printRefresh(cmd, result)
	return nil
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	docs, err := current.documents.ListDocuments(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		cmd.Printf("No documents found for room: %s\n", args[0])
		return nil
	}

	cmd.Printf("Documents for room %s:\n\n", args[0])
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title: %s\n", docs[i].Title)
		cmd.Printf("    %s: %s\n", docs[i].Kind, docs[i].Location)
		cmd.Println()
	}
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentsRemove(cmd *cobra.Command, args []string) error {
	result, err := current.documents.RemoveDocument(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	cmd.Printf("Removed document %s\n", args[1])
	printRefresh(cmd, result)
	return nil
}

func runDocumentsWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	docs, err := current.documents.ListDocuments(ctx, args[0])
	if err != nil {
		return err
	}
	w, err := watch.New(args[0], docs, current.chunks)
	if err != nil {
		return err
	}
	logger.Infof("Watching %d document(s) in room %s. Press Ctrl+C to stop.", w.Paths(), args[0])
	return w.Run(ctx)
}
