package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	StorageS3       = "s3"
	StorageSupabase = "supabase"

	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderElevenLabs = "elevenlabs"
)

type Config struct {
	// Server
	AppEnv             string
	APIPort            string
	WorkerEnabled      bool
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Job store
	JobStore    string // postgres | redis
	DatabaseURL string
	RedisURL    string

	// Artifact storage
	StorageBackend    string // s3 | supabase
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3Region          string
	S3UseSSL          bool

	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (planning, and optionally images and narration)
	OpenAIKey        string
	OpenAIBaseURL    string
	OpenAIPlanModel  string
	OpenAIImageModel string
	OpenAITTSModel   string
	OpenAITTSVoice   string

	ImageProvider    string // openai | gemini
	GeminiKey        string
	GeminiImageModel string

	TTSProvider       string // openai | elevenlabs
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Rendering
	WorkRoot    string
	FontPath    string
	FFmpegPath  string
	FFprobePath string

	// Worker
	PollInterval     time.Duration
	ClaimTimeout     time.Duration
	JobTimeout       time.Duration
	MediaConcurrency int
	ResultURLTTL     time.Duration

	DefaultPlatform string
	DefaultTone     string
}

// Load reads the service configuration and validates every backend it selects.
func Load() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadForGenerator reads the same environment but only requires what a local
// run needs: the generation providers.
func LoadForGenerator() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.ValidateProviders(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	return &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		JobStore:              strings.ToLower(getEnv("JOB_STORE", StorePostgres)),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", StorageS3)),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:         getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:     getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Bucket:              getEnv("S3_BUCKET", ""),
		S3Region:              getEnv("S3_REGION", "auto"),
		S3UseSSL:              getEnvBool("S3_USE_SSL", true),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "ad-videos"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		OpenAIPlanModel:       getEnv("OPENAI_PLAN_MODEL", "gpt-4o-mini"),
		OpenAIImageModel:      getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		OpenAITTSModel:        getEnv("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
		OpenAITTSVoice:        getEnv("OPENAI_TTS_VOICE", "alloy"),
		ImageProvider:         strings.ToLower(getEnv("IMAGE_PROVIDER", ProviderOpenAI)),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel:      getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		TTSProvider:           strings.ToLower(getEnv("TTS_PROVIDER", ProviderOpenAI)),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		WorkRoot:              getEnv("WORK_ROOT", "out"),
		FontPath:              getEnv("FONT_PATH", ""),
		FFmpegPath:            getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:           getEnv("FFPROBE_PATH", "ffprobe"),
		PollInterval:          getEnvDuration("POLL_INTERVAL", 2*time.Second),
		ClaimTimeout:          getEnvDuration("CLAIM_TIMEOUT", 10*time.Second),
		JobTimeout:            getEnvDuration("JOB_TIMEOUT", 15*time.Minute),
		MediaConcurrency:      getEnvInt("MEDIA_CONCURRENCY", 3),
		ResultURLTTL:          getEnvDuration("RESULT_URL_TTL", time.Hour),
		DefaultPlatform:       getEnv("DEFAULT_PLATFORM", "TikTok"),
		DefaultTone:           getEnv("DEFAULT_TONE", "Bold"),
	}
}

func (c *Config) validate() error {
	switch c.JobStore {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when JOB_STORE=postgres")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when JOB_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown JOB_STORE %q (want postgres or redis)", c.JobStore)
	}

	switch c.StorageBackend {
	case StorageS3:
		if c.S3Endpoint == "" || c.S3AccessKeyID == "" || c.S3SecretAccessKey == "" || c.S3Bucket == "" {
			return fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY and S3_BUCKET are required when STORAGE_BACKEND=s3")
		}
	case StorageSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when STORAGE_BACKEND=supabase")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want s3 or supabase)", c.StorageBackend)
	}

	if err := c.ValidateProviders(); err != nil {
		return err
	}

	if c.ResultURLTTL < time.Second {
		return fmt.Errorf("RESULT_URL_TTL must be at least 1s")
	}
	return nil
}

// ValidateProviders checks the keys needed to generate an ad.
func (c *Config) ValidateProviders() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	switch c.ImageProvider {
	case ProviderOpenAI:
	case ProviderGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when IMAGE_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown IMAGE_PROVIDER %q (want openai or gemini)", c.ImageProvider)
	}

	switch c.TTSProvider {
	case ProviderOpenAI:
	case ProviderElevenLabs:
		if c.ElevenLabsKey == "" || c.ElevenLabsVoiceID == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY and ELEVENLABS_VOICE_ID are required when TTS_PROVIDER=elevenlabs")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q (want openai or elevenlabs)", c.TTSProvider)
	}
	return nil
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

// getEnvDuration accepts Go durations ("90s", "15m") or bare seconds ("3600").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
