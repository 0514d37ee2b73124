package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type SegmenterConfig struct {
	Mode        string `yaml:"mode"` // openai, exec, mock
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	Command     string `yaml:"command"`
	MaxTokens   int    `yaml:"max_tokens"`
	RetryLimit  int    `yaml:"retry_limit"`
	RetryWaitMS int    `yaml:"retry_wait_ms"`
}

type TTSConfig struct {
	Mode         string `yaml:"mode"` // exec, mock
	Command      string `yaml:"command"`
	SampleRate   int    `yaml:"sample_rate"`
	Channels     int    `yaml:"channels"`
	DefaultVoice string `yaml:"default_voice"`
}

type SynthesisConfig struct {
	MaxWorkers     int `yaml:"max_workers"`
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
}

type CacheConfig struct {
	Dir            string `yaml:"dir"`
	IndexPath      string `yaml:"index_path"`
	RetentionDays  int    `yaml:"retention_days"`
	MaxEntries     int    `yaml:"max_entries"`
	PageLRUSize    int    `yaml:"page_lru_size"`
	SegmentLRUSize int    `yaml:"segment_lru_size"`
	VacuumOnStart  bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Segmenter   SegmenterConfig `yaml:"segmenter"`
	TTS         TTSConfig       `yaml:"tts"`
	Synthesis   SynthesisConfig `yaml:"synthesis"`
	Cache       CacheConfig     `yaml:"cache"`
}

func Default() Config {
	return Config{
		ServiceName: "pagevoice",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 4567,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Segmenter: SegmenterConfig{
			Mode:        "mock",
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			MaxTokens:   32768,
			RetryLimit:  3,
			RetryWaitMS: 1000,
		},
		TTS: TTSConfig{
			Mode:         "mock",
			SampleRate:   24000,
			Channels:     1,
			DefaultVoice: "af_heart",
		},
		Synthesis: SynthesisConfig{
			MaxWorkers:     4,
			MaxChunkTokens: 100,
		},
		Cache: CacheConfig{
			Dir:            "./audio_cache",
			IndexPath:      "./data/pagevoice-cache.db",
			RetentionDays:  30,
			MaxEntries:     10000,
			PageLRUSize:    256,
			SegmentLRUSize: 512,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "PAGEVOICE_SERVICE_NAME")
	overrideString(&cfg.Environment, "PAGEVOICE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "PAGEVOICE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "PAGEVOICE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "PAGEVOICE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "PAGEVOICE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "PAGEVOICE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "PAGEVOICE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "PAGEVOICE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "PAGEVOICE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "PAGEVOICE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "PAGEVOICE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "PAGEVOICE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "PAGEVOICE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "PAGEVOICE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "PAGEVOICE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "PAGEVOICE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Segmenter.Mode, "PAGEVOICE_SEGMENTER_MODE")
	overrideString(&cfg.Segmenter.BaseURL, "PAGEVOICE_SEGMENTER_BASE_URL")
	overrideString(&cfg.Segmenter.APIKey, "PAGEVOICE_SEGMENTER_API_KEY")
	overrideString(&cfg.Segmenter.Model, "PAGEVOICE_SEGMENTER_MODEL")
	overrideString(&cfg.Segmenter.Command, "PAGEVOICE_SEGMENTER_COMMAND")
	overrideInt(&cfg.Segmenter.MaxTokens, "PAGEVOICE_SEGMENTER_MAX_TOKENS")
	overrideInt(&cfg.Segmenter.RetryLimit, "PAGEVOICE_SEGMENTER_RETRY_LIMIT")
	overrideInt(&cfg.Segmenter.RetryWaitMS, "PAGEVOICE_SEGMENTER_RETRY_WAIT_MS")
	overrideString(&cfg.TTS.Mode, "PAGEVOICE_TTS_MODE")
	overrideString(&cfg.TTS.Command, "PAGEVOICE_TTS_COMMAND")
	overrideInt(&cfg.TTS.SampleRate, "PAGEVOICE_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "PAGEVOICE_TTS_CHANNELS")
	overrideString(&cfg.TTS.DefaultVoice, "PAGEVOICE_TTS_DEFAULT_VOICE")
	overrideInt(&cfg.Synthesis.MaxWorkers, "PAGEVOICE_SYNTHESIS_MAX_WORKERS")
	overrideInt(&cfg.Synthesis.MaxChunkTokens, "PAGEVOICE_SYNTHESIS_MAX_CHUNK_TOKENS")
	overrideString(&cfg.Cache.Dir, "PAGEVOICE_CACHE_DIR")
	overrideString(&cfg.Cache.IndexPath, "PAGEVOICE_CACHE_INDEX_PATH")
	overrideInt(&cfg.Cache.RetentionDays, "PAGEVOICE_CACHE_RETENTION_DAYS")
	overrideInt(&cfg.Cache.MaxEntries, "PAGEVOICE_CACHE_MAX_ENTRIES")
	overrideInt(&cfg.Cache.PageLRUSize, "PAGEVOICE_CACHE_PAGE_LRU_SIZE")
	overrideInt(&cfg.Cache.SegmentLRUSize, "PAGEVOICE_CACHE_SEGMENT_LRU_SIZE")
	overrideBool(&cfg.Cache.VacuumOnStart, "PAGEVOICE_CACHE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Segmenter.Mode {
	case "openai", "exec", "mock":
	default:
		return errors.New("segmenter.mode must be one of openai|exec|mock")
	}
	if cfg.Segmenter.Mode == "openai" && cfg.Segmenter.APIKey == "" {
		return errors.New("segmenter.api_key must be set when mode=openai")
	}
	if cfg.Segmenter.Mode == "openai" && cfg.Segmenter.Model == "" {
		return errors.New("segmenter.model must be set when mode=openai")
	}
	if cfg.Segmenter.Mode == "exec" && cfg.Segmenter.Command == "" {
		return errors.New("segmenter.command must be set when mode=exec")
	}
	if cfg.Segmenter.RetryLimit <= 0 {
		return errors.New("segmenter.retry_limit must be >= 1")
	}
	if cfg.Segmenter.RetryWaitMS < 0 {
		return errors.New("segmenter.retry_wait_ms must be >= 0")
	}
	switch cfg.TTS.Mode {
	case "exec", "mock":
	default:
		return errors.New("tts.mode must be one of exec|mock")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.SampleRate <= 0 {
		return errors.New("tts.sample_rate must be positive")
	}
	if cfg.TTS.Channels != 1 {
		return errors.New("tts.channels must be 1 (mono output)")
	}
	if cfg.TTS.DefaultVoice == "" {
		return errors.New("tts.default_voice must not be empty")
	}
	if cfg.Synthesis.MaxWorkers <= 0 {
		return errors.New("synthesis.max_workers must be >= 1")
	}
	if cfg.Synthesis.MaxChunkTokens <= 0 {
		return errors.New("synthesis.max_chunk_tokens must be >= 1")
	}
	if cfg.Cache.Dir == "" {
		return errors.New("cache.dir must not be empty")
	}
	if cfg.Cache.IndexPath == "" {
		return errors.New("cache.index_path must not be empty")
	}
	if cfg.Cache.RetentionDays < 0 {
		return errors.New("cache.retention_days must be >= 0")
	}
	if cfg.Cache.PageLRUSize <= 0 || cfg.Cache.SegmentLRUSize <= 0 {
		return errors.New("cache LRU sizes must be >= 1")
	}
	return nil
}
