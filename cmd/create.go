package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/config"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/signaling"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/ui"
)

var (
	createName     string
	createRoomName string
	createApproval bool
	createDomain   string
	createSTUN     string
	createTURN     string
	createTURNUser string
	createTURNPass string
	createRelay    bool
)

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a chat room and wait for others to join",
	Long: `Create a new room and print its code for others to join with.

Examples:
  shadowwhisper create --name alice
  shadowwhisper create --name alice --room "lunch crew" --approval
  shadowwhisper create --name alice --relay --turn turn:turn.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return createRoom()
	},
}

func createRoom() error {
	if createName == "" {
		return fmt.Errorf("a display name is required (--name)")
	}

	cfg, err := LoadConfig(config.Options{
		Domain:     createDomain,
		STUNServer: createSTUN,
		TURNServer: createTURN,
		TURNUser:   createTURNUser,
		TURNPass:   createTURNPass,
		ForceRelay: createRelay,
	})
	if err != nil {
		return err
	}

	roomName := createRoomName
	if roomName == "" {
		roomName = createName + "'s room"
	}
	code := signaling.GenerateCode()

	coord := NewCoordinator(cfg, createName)
	if err := coord.CreateRoom(roomName, code, createApproval); err != nil {
		coord.Close()
		return err
	}

	fmt.Println(ui.RoomInfoView(code, roomName, createApproval))
	fmt.Println()

	return RunSession(coord)
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&createName, "name", "n", "", "Your display name")
	createCmd.Flags().StringVar(&createRoomName, "room", "", "Room name shown to participants")
	createCmd.Flags().BoolVarP(&createApproval, "approval", "a", false, "Require creator approval before newcomers join")
	createCmd.Flags().StringVarP(&createDomain, "domain", "d", "", "Custom relay domain")
	createCmd.Flags().StringVarP(&createSTUN, "stun", "s", "", "Custom STUN server")
	createCmd.Flags().StringVarP(&createTURN, "turn", "t", "", "Custom TURN server")
	createCmd.Flags().StringVarP(&createTURNUser, "turn-user", "u", "", "TURN username")
	createCmd.Flags().StringVarP(&createTURNPass, "turn-pass", "p", "", "TURN password")
	createCmd.Flags().BoolVarP(&createRelay, "relay", "r", false, "Force relay mode")
}
