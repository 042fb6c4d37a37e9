package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/ui"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "shadowwhisper",
	Short:   "Serverless peer-to-peer group chat over WebRTC",
	Long: `ShadowWhisper is a command-line group chat without a chat server. Every
participant holds a direct WebRTC data channel to every other participant;
a small rendezvous relay is used only to exchange connection descriptions,
after which no message ever touches a server. Rooms are identified by
memorable word codes and can optionally require the creator's approval
before a newcomer is admitted.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
