package main

import (
	"advisor-backend/cmd/cli"
	"advisor-backend/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.Load()

	cli.Execute(cfg)
}
