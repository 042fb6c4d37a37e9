package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/config"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/ui"
)

var (
	joinName     string
	joinDomain   string
	joinSTUN     string
	joinTURN     string
	joinTURNUser string
	joinTURNPass string
	joinRelay    bool
)

var joinCmd = &cobra.Command{
	Use:     "join <room-code>",
	Aliases: []string{"j"},
	Short:   "Join an existing chat room by its code",
	Long: `Join a room using the code its creator shared.

Examples:
  shadowwhisper join amber-falcon-cove --name bob
  shadowwhisper join amber-falcon-cove --name bob --domain custom.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(code string) error {
	if joinName == "" {
		return fmt.Errorf("a display name is required (--name)")
	}

	cfg, err := LoadConfig(config.Options{
		Domain:     joinDomain,
		STUNServer: joinSTUN,
		TURNServer: joinTURN,
		TURNUser:   joinTURNUser,
		TURNPass:   joinTURNPass,
		ForceRelay: joinRelay,
	})
	if err != nil {
		return err
	}

	coord := NewCoordinator(cfg, joinName)
	if err := coord.JoinRoom(code, joinName); err != nil {
		coord.Close()
		return err
	}

	ui.PrintSuccessf("Joined %s. Waiting for peers...", code)

	return RunSession(coord)
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&joinName, "name", "n", "", "Your display name")
	joinCmd.Flags().StringVarP(&joinDomain, "domain", "d", "", "Custom relay domain")
	joinCmd.Flags().StringVarP(&joinSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&joinTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&joinTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&joinTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().BoolVarP(&joinRelay, "relay", "r", false, "Force relay mode")
}
