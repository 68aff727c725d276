package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/dlemos/formfill/cmd"
)

func main() {
	// .env is optional; environment variables win over it.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
