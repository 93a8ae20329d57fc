package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config carries every environment knob the server reads.
type Config struct {
	DatabaseURL     string
	Port            string
	JWTSecret       string
	AdminEmail      string
	AuthAutoconfirm bool

	GeminiAPIKey string
	GenModel     string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string
}

// Load reads .env (when present) and the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		Port:            getEnv("PORT", "3000"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AdminEmail:      getEnv("ADMIN_EMAIL", "admin@socialjuris.com"),
		AuthAutoconfirm: getEnv("AUTH_AUTOCONFIRM", "") == "true",
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GenModel:        getEnv("GEN_MODEL", "gemini-2.5-flash"),
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket:  getEnv("SUPABASE_BUCKET", "documents"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
