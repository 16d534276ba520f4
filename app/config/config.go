package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      Log      `yaml:"log"`
	DB       DB       `yaml:"db"`
	Telegram Telegram `yaml:"telegram"`
	OpenAI   OpenAI   `yaml:"openai"`
	Engine   Engine   `yaml:"engine"`
}

type OpenAI struct {
	// OpenAI-compatible base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required"`
	// API token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Model name
	Model string `yaml:"model" example:"openai/gpt-4o-mini" validate:"required"`
}

type Telegram struct {
	// Bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789" validate:"required"`
	// Do not send "typing" chat actions before generating a response
	DisableTyping bool `yaml:"disable_typing" example:"false"`
}

type Engine struct {
	// Cadence of the poll and dispatch loops, in seconds
	PollIntervalSec int `yaml:"poll_interval_sec" example:"1"`
	// Cadence of the scheduled note sweeper, in seconds
	ReminderIntervalSec int `yaml:"reminder_interval_sec" example:"10"`
}

func (e Engine) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalSec) * time.Second
}

func (e Engine) ReminderInterval() time.Duration {
	return time.Duration(e.ReminderIntervalSec) * time.Second
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Logging bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send log messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type DB struct {
	// Path to the sqlite database file
	Path string `yaml:"path" example:"data/telemind.db"`
}

func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

func LoadFile(path string) (*Config, error) {
	var result Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.DB.Path == "" {
		result.DB.Path = "data/telemind.db"
	}
	if result.Engine.PollIntervalSec <= 0 {
		result.Engine.PollIntervalSec = 1
	}
	if result.Engine.ReminderIntervalSec <= 0 {
		result.Engine.ReminderIntervalSec = 10
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
