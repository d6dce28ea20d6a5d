package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string           `yaml:"discord_token"`
	DataPath     string           `yaml:"data_path"`
	LogLevel     string           `yaml:"log_level"`
	Activity     string           `yaml:"activity"`
	Health       HealthConfig     `yaml:"health"`
	XP           XPConfig         `yaml:"xp"`
	Moderation   ModerationConfig `yaml:"moderation"`
	Audit        AuditConfig      `yaml:"audit"`
	Giveaway     GiveawayConfig   `yaml:"giveaway"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type XPConfig struct {
	MessageAward              int `yaml:"message_award"`
	AttachmentAward           int `yaml:"attachment_award"`
	AttachmentCooldownSeconds int `yaml:"attachment_cooldown_seconds"`
	VoiceAward                int `yaml:"voice_award"`
	VoiceSweepSeconds         int `yaml:"voice_sweep_seconds"`
	TopCount                  int `yaml:"top_count"`
}

type ModerationConfig struct {
	ForbiddenTerms []string `yaml:"forbidden_terms"`
	MatchExact     bool     `yaml:"match_exact"`
	WarnThreshold  int      `yaml:"warn_threshold"`
	TimeoutMinutes int      `yaml:"timeout_minutes"`
}

type AuditConfig struct {
	ChannelName  string `yaml:"channel_name"`
	CategoryName string `yaml:"category_name"`
}

type GiveawayConfig struct {
	Emoji         string `yaml:"emoji"`
	DMConcurrency int    `yaml:"dm_concurrency"`
}

func DefaultConfig() Config {
	return Config{
		DataPath: "data.json",
		LogLevel: "info",
		Activity: "shbak-shbak",
		Health:   HealthConfig{Enabled: false, Addr: ":8080"},
		XP: XPConfig{
			MessageAward:              5,
			AttachmentAward:           100,
			AttachmentCooldownSeconds: 3600,
			VoiceAward:                10,
			VoiceSweepSeconds:         60,
			TopCount:                  10,
		},
		Moderation: ModerationConfig{
			ForbiddenTerms: defaultForbiddenTerms(),
			MatchExact:     false,
			WarnThreshold:  3,
			TimeoutMinutes: 15,
		},
		Audit: AuditConfig{
			ChannelName:  "log",
			CategoryName: "admin",
		},
		Giveaway: GiveawayConfig{
			Emoji:         "\U0001F389",
			DMConcurrency: 8,
		},
	}
}

func defaultForbiddenTerms() []string {
	return []string{
		"fuck", "shit", "bitch", "slut", "dick", "pussy", "asshole",
		"cunt", "bastard", "whore", "motherfucker", "sucker", "idiot",
		"كسمك", "شرموته", "متناكه", "متناك", "كس امك", "خول", "كلب",
		"كس", "زب", "طيز", "منكوح", "جزمه", "بضان", "قحبه", "منيوك",
		"ابن وسخة", "يا ابن الوسخة", "يا ابن المتناكة", "ابو الزفت",
		"جزمة", "خخخ", "هفأ", "فاجرة", "ابو العفاريت", "ابو العك",
		"ابو القرف", "ابن الفاجرة", "يا حيوان", "عرص", "كـس",
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DataPath = envString("DATA_PATH", cfg.DataPath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Activity = envString("ACTIVITY", cfg.Activity)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.XP.MessageAward = envInt("XP_MESSAGE_AWARD", cfg.XP.MessageAward)
	cfg.XP.AttachmentAward = envInt("XP_ATTACHMENT_AWARD", cfg.XP.AttachmentAward)
	cfg.XP.AttachmentCooldownSeconds = envInt("XP_ATTACHMENT_COOLDOWN_SECONDS", cfg.XP.AttachmentCooldownSeconds)
	cfg.XP.VoiceAward = envInt("XP_VOICE_AWARD", cfg.XP.VoiceAward)
	cfg.XP.VoiceSweepSeconds = envInt("XP_VOICE_SWEEP_SECONDS", cfg.XP.VoiceSweepSeconds)
	cfg.XP.TopCount = envInt("XP_TOP_COUNT", cfg.XP.TopCount)
	cfg.Moderation.MatchExact = envBool("MODERATION_MATCH_EXACT", cfg.Moderation.MatchExact)
	cfg.Moderation.WarnThreshold = envInt("MODERATION_WARN_THRESHOLD", cfg.Moderation.WarnThreshold)
	cfg.Moderation.TimeoutMinutes = envInt("MODERATION_TIMEOUT_MINUTES", cfg.Moderation.TimeoutMinutes)
	cfg.Audit.ChannelName = envString("AUDIT_CHANNEL_NAME", cfg.Audit.ChannelName)
	cfg.Audit.CategoryName = envString("AUDIT_CATEGORY_NAME", cfg.Audit.CategoryName)
	cfg.Giveaway.Emoji = envString("GIVEAWAY_EMOJI", cfg.Giveaway.Emoji)
	cfg.Giveaway.DMConcurrency = envInt("GIVEAWAY_DM_CONCURRENCY", cfg.Giveaway.DMConcurrency)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
