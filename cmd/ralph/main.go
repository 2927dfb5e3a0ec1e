package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Backend API keys commonly live in a local .env file.
	_ = godotenv.Load()
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
