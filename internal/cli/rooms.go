package cli

import (
	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Manage rooms",
}

var roomsCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a room",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoomsCreate,
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rooms",
	Args:  cobra.NoArgs,
	RunE:  runRoomsList,
}

var roomsDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a room with its documents, chunks and history",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoomsDelete,
}

func init() {
	roomsCmd.AddCommand(roomsCreateCmd)
	roomsCmd.AddCommand(roomsListCmd)
	roomsCmd.AddCommand(roomsDeleteCmd)
	rootCmd.AddCommand(roomsCmd)
}

func runRoomsCreate(cmd *cobra.Command, args []string) error {
	room, err := current.documents.CreateRoom(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Created room %s (%s)\n", room.Name, room.ID)
	return nil
}

func runRoomsList(cmd *cobra.Command, _ []string) error {
	rooms, err := current.documents.ListRooms(cmd.Context())
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		cmd.Println("No rooms found")
		return nil
	}
	for _, r := range rooms {
		cmd.Printf("  %s\t%s\t%s\n", r.Name, r.ID, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	cmd.Printf("Total: %d rooms\n", len(rooms))
	return nil
}

func runRoomsDelete(cmd *cobra.Command, args []string) error {
	if err := current.documents.DeleteRoom(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Deleted room %s\n", args[0])
	return nil
}
