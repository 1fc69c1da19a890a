package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable the service reads. Values come from the
// environment first; an optional YAML file overrides them.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DataDir    string `yaml:"data_dir"`

	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`

	ChunkSizeBytes int64 `yaml:"chunk_size_bytes"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	YTDLPPath   string `yaml:"ytdlp_path"`

	// Recognizer selection: "whisperapi" (hosted) or "whispercpp" (local binary).
	RecognizerBackend string `yaml:"recognizer_backend"`
	RecognizerAPIKey  string `yaml:"recognizer_api_key"`
	RecognizerBaseURL string `yaml:"recognizer_base_url"`
	RecognizerModel   string `yaml:"recognizer_model"`
	WhisperBin        string `yaml:"whisper_bin"`
	WhisperModel      string `yaml:"whisper_model"`

	ClassifierAPIKey  string `yaml:"classifier_api_key"`
	ClassifierBaseURL string `yaml:"classifier_base_url"`
	ClassifierModel   string `yaml:"classifier_model"`

	// AudienceProfilePath points at the generated audience-profile text handed
	// to the classifier; empty falls back to a generic profile.
	AudienceProfilePath string `yaml:"audience_profile_path"`

	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	RenderTimeout time.Duration `yaml:"render_timeout"`

	RecognizerMaxBytes  int64   `yaml:"recognizer_max_bytes"`
	ChunkSeconds        int     `yaml:"chunk_seconds"`
	MaxClipDuration     time.Duration `yaml:"max_clip_duration"`
	TranscriptCharLimit int     `yaml:"transcript_char_limit"`
	AudioBitrateKbps    int     `yaml:"audio_bitrate_kbps"`
}

// Load builds the config from environment variables, then overlays the YAML
// file at path when path is non-empty.
func Load(path string) (Config, error) {
	cfg := fromEnv()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, cfg.validate()
}

func fromEnv() Config {
	return Config{
		ListenAddr: getenv("PODCLIP_ADDR", ":8090"),
		DataDir:    getenv("PODCLIP_DATA_DIR", "data"),

		Workers:   getenvInt("PODCLIP_WORKERS", 4),
		QueueSize: getenvInt("PODCLIP_QUEUE_SIZE", 32),

		ChunkSizeBytes: getenvInt64("PODCLIP_CHUNK_SIZE", 10<<20),

		FFmpegPath:  getenv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getenv("FFPROBE_PATH", "ffprobe"),
		YTDLPPath:   getenv("YTDLP_PATH", "yt-dlp"),

		RecognizerBackend: getenv("RECOGNIZER_BACKEND", "whisperapi"),
		RecognizerAPIKey:  os.Getenv("RECOGNIZER_API_KEY"),
		RecognizerBaseURL: getenv("RECOGNIZER_BASE_URL", "https://api.openai.com"),
		RecognizerModel:   getenv("RECOGNIZER_MODEL", "whisper-1"),
		WhisperBin:        getenv("WHISPER_BIN", ".cache/bin/whisper.cpp"),
		WhisperModel:      getenv("WHISPER_MODEL", ".cache/models/ggml-base.bin"),

		ClassifierAPIKey:  os.Getenv("CLASSIFIER_API_KEY"),
		ClassifierBaseURL: getenv("CLASSIFIER_BASE_URL", "https://openrouter.ai"),
		ClassifierModel:   getenv("CLASSIFIER_MODEL", "anthropic/claude-3.5-sonnet"),

		AudienceProfilePath: os.Getenv("AUDIENCE_PROFILE_PATH"),

		FetchTimeout:  getenvDuration("PODCLIP_FETCH_TIMEOUT", 15*time.Minute),
		RenderTimeout: getenvDuration("PODCLIP_RENDER_TIMEOUT", 5*time.Minute),

		RecognizerMaxBytes:  getenvInt64("RECOGNIZER_MAX_BYTES", 25<<20),
		ChunkSeconds:        getenvInt("PODCLIP_CHUNK_SECONDS", 600),
		MaxClipDuration:     getenvDuration("PODCLIP_MAX_CLIP", 25*time.Minute),
		TranscriptCharLimit: getenvInt("PODCLIP_TRANSCRIPT_CHAR_LIMIT", 48000),
		AudioBitrateKbps:    getenvInt("PODCLIP_AUDIO_BITRATE", 64),
	}
}

func (c Config) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be > 0")
	}
	if c.ChunkSizeBytes <= 0 {
		return fmt.Errorf("chunk size must be > 0")
	}
	if c.ChunkSeconds <= 0 {
		return fmt.Errorf("chunk seconds must be > 0")
	}
	if c.MaxClipDuration <= 0 {
		return fmt.Errorf("max clip duration must be > 0")
	}
	switch c.RecognizerBackend {
	case "whisperapi", "whispercpp":
	default:
		return fmt.Errorf("unknown recognizer backend %q", c.RecognizerBackend)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
