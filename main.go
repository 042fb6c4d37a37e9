package main

import (
	"github.com/imcmurray/ShadowWhisper-sub001/cmd"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
