package cmd

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/signaling"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rendezvous relay",
	Long: `Run the websocket relay that participants use to discover each other and
exchange connection descriptions. The relay never sees chat traffic.

Examples:
  shadowwhisper serve
  shadowwhisper serve --addr :9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRelay()
	},
}

func serveRelay() error {
	hub := signaling.NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", signaling.ServeHealth())
	mux.HandleFunc("/ws", signaling.ServeWs(hub))

	slog.Info("relay listening", "addr", serveAddr)
	return http.ListenAndServe(serveAddr, mux)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}
