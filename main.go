package main

import (
	"log"

	"github.com/EasterCompany/dex-voice-service/app"
	logger "github.com/EasterCompany/dex-voice-service/log"
	"github.com/EasterCompany/dex-voice-service/utils"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version   string
	branch    string
	commit    string
	buildDate string
	arch      string
)

func main() {
	utils.SetVersion(version, branch, commit, buildDate, arch)
	log.Printf("[APP] dex-voice-service %s", utils.GetVersion())

	a, err := app.New()
	if err != nil {
		logger.Fatal("Failed to start", err)
	}
	if err := a.Run(); err != nil {
		logger.Fatal("Shutdown error", err)
	}
}
