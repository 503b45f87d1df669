package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Env returns APP_ENV, "local" when unset
func Env() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return "local"
}

// Path returns configs/config.<env>.yaml, or CONFIG_PATH when set
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return fmt.Sprintf("configs/config.%s.yaml", Env())
}

// LoadDotEnv loads dotenv files, most specific first: .env.<env>.local,
// .env.<env>, .env.local, .env. godotenv never overwrites variables that are
// already set, so OS env wins and earlier files win over later ones.
// Returns the files actually loaded.
func LoadDotEnv() []string {
	env := Env()
	candidates := []string{".env." + env + ".local", ".env." + env, ".env.local", ".env"}

	var loaded []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
