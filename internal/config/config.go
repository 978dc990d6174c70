package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config aggregates every setting the service needs.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Data   DataConfig   `yaml:"data"`
	Speech SpeechConfig `yaml:"speech"`
	Audio  AudioConfig  `yaml:"audio"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// DataConfig points at the emotion lookup table.
type DataConfig struct {
	EmotionTablePath string `yaml:"emotion_table_path"`
}

// SpeechConfig describes the speech engine credentials and defaults.
type SpeechConfig struct {
	AppID       string  `yaml:"app_id"`
	AccessToken string  `yaml:"access_token"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Concurrent  bool    `yaml:"concurrent"` // concurrent ASR resource instead of the hourly one
	ASRLanguage string  `yaml:"asr_language"`
	TTSVoice    string  `yaml:"tts_voice"`
	TTSSpeed    float32 `yaml:"tts_speed"`
	TTSVolume   float32 `yaml:"tts_volume"`
	TTSLanguage string  `yaml:"tts_language"`
	Timeout     int     `yaml:"timeout"` // seconds
	Enabled     bool    `yaml:"-"`
}

// AudioConfig controls where spoken responses are staged before playback.
type AudioConfig struct {
	TempDir string `yaml:"temp_dir"`
}

// Defaults returns the configuration used when nothing else is provided.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "json"},
		Data:   DataConfig{EmotionTablePath: "emotion_lookup_table.csv"},
		Speech: SpeechConfig{
			ASRLanguage: "en-US",
			TTSVoice:    "en_female_amy_jupiter_bigtts",
			TTSSpeed:    1.0,
			TTSVolume:   1.0,
			TTSLanguage: "en-US",
			Timeout:     30,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and finally environment variables, each layer overriding the
// previous one.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	server, err := loadServerConfig(cfg.Server)
	if err != nil {
		return nil, err
	}
	cfg.Server = server

	cfg.Log = LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)),
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return nil, fmt.Errorf("invalid LOG_FORMAT value %q: want json or console", cfg.Log.Format)
	}

	cfg.Data.EmotionTablePath = getEnvOrDefault("EMOTION_TABLE_PATH", cfg.Data.EmotionTablePath)
	cfg.Audio.TempDir = getEnvOrDefault("AUDIO_TEMP_DIR", cfg.Audio.TempDir)

	speech, err := loadSpeechConfig(cfg.Speech)
	if err != nil {
		return nil, err
	}
	cfg.Speech = speech

	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// loadServerConfig resolves the listen address from PORT.
func loadServerConfig(base ServerConfig) (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return base, nil
	}

	if strings.Contains(port, ":") {
		// ":8080" or "127.0.0.1:8080" are taken verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func loadSpeechConfig(base SpeechConfig) (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	if timeout != nil {
		base.Timeout = *timeout
	}
	if base.Timeout <= 0 {
		base.Timeout = 30
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	if speed != nil {
		base.TTSSpeed = *speed
	}

	volume, err := parseOptionalFloat32Env("SPEECH_TTS_VOLUME")
	if err != nil {
		return SpeechConfig{}, err
	}
	if volume != nil {
		base.TTSVolume = *volume
	}

	concurrent, err := parseBoolEnv("SPEECH_ASR_CONCURRENT", base.Concurrent)
	if err != nil {
		return SpeechConfig{}, err
	}
	base.Concurrent = concurrent

	base.AppID = getEnvOrDefault("SPEECH_APP_ID", base.AppID)
	base.APIKey = getEnvOrDefault("SPEECH_API_KEY", base.APIKey)
	base.AccessToken = getEnvOrDefault("SPEECH_ACCESS_TOKEN", base.AccessToken)
	if base.AccessToken == "" {
		base.AccessToken = base.APIKey
	}

	base.BaseURL = getEnvOrDefault("SPEECH_BASE_URL", base.BaseURL)
	base.ASRLanguage = getEnvOrDefault("SPEECH_ASR_LANGUAGE", base.ASRLanguage)
	base.TTSVoice = getEnvOrDefault("SPEECH_TTS_VOICE", base.TTSVoice)
	base.TTSLanguage = getEnvOrDefault("SPEECH_TTS_LANGUAGE", base.TTSLanguage)

	base.Enabled = base.AppID != "" && base.AccessToken != ""

	return base, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
