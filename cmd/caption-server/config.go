package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/captionloom/caption-server/internal/api/http"
	"github.com/captionloom/caption-server/internal/db"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log         LogConfig
	Http        http.Config
	Db          db.Config
	Otp         OtpConfig
	Emergency   EmergencyConfig
	Maintenance MaintenanceConfig
	Mailer      MailerConfig
}

type OtpConfig struct {
	TTLSeconds         int `mapstructure:"ttl_seconds"`
	MinIntervalSeconds int `mapstructure:"min_interval_seconds"`
}

type EmergencyConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

type MaintenanceConfig struct {
	AllowedIPs    string `mapstructure:"allowed_ips"`
	AllowedEmails string `mapstructure:"allowed_emails"`
}

type MailerConfig struct {
	RevealBodies bool `mapstructure:"reveal_bodies"`
}

var config Config

func ParseCommaSeparated(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/caption-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("db.url", "DATABASE_URL")
	_ = viper.BindEnv("http.jwt.secret", "JWT_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
