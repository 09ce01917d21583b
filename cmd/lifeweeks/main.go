// Command lifeweeks runs the life calendar Telegram bot.
package main

import (
	"log"

	"github.com/m3rciful/lifeweeks/core/cmd"
	"github.com/m3rciful/lifeweeks/internal/app"
	"github.com/m3rciful/lifeweeks/internal/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		DotEnvFiles:       []string{".env"},
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
