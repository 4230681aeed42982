package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	ExposeDiagnostics  bool   // When true, failure responses include the underlying diagnostic

	// Database (per-owner video catalog)
	DatabaseURL string

	// Redis (live job stage tracking)
	RedisURL string

	// Supabase storage (final videos + thumbnails)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (scene scripting + Whisper transcription)
	OpenAIKey string

	// Gemini (scene image generation)
	GeminiKey string

	// ElevenLabs (narration TTS)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Pipeline
	SceneCount     int    // Scenes per video (validated against the generated script)
	WorkspaceRoot  string // Parent directory for per-job staging directories
	SignedURLTTL   int    // Signed URL lifetime in seconds
	RequestTimeout int    // Inbound create-video timeout in seconds
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		ExposeDiagnostics:     getEnvBool("EXPOSE_DIAGNOSTICS", false),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "clipforge-videos"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		SceneCount:            getEnvInt("SCENE_COUNT", 3),
		WorkspaceRoot:         getEnv("WORKSPACE_ROOT", "/tmp/clipforge"),
		SignedURLTTL:          getEnvInt("SIGNED_URL_TTL_SECONDS", 518400), // 6 days
		RequestTimeout:        getEnvInt("REQUEST_TIMEOUT_SECONDS", 300),  // chained upstream calls + subprocess rendering
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.ElevenLabsKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	if cfg.SceneCount < 1 {
		return nil, fmt.Errorf("SCENE_COUNT must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
