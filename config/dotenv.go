package config

import "github.com/joho/godotenv"

// loadDotEnv loads a .env file from the working directory if present; a
// missing file is not an error (production sets real env vars).
func loadDotEnv() {
	_ = godotenv.Load()
}
