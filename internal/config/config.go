package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Redis struct {
		Addr            string
		Password        string
		DB              int
		CooldownSeconds int
	}
	Auth struct {
		JWTSecret         string
		SessionTTLMinutes int
		ResetTTLMinutes   int
		RequireVerified   bool
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
}

// SessionTTL returns the session token lifetime as a duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

// ResetTTL returns the password-reset token lifetime as a duration.
func (c Config) ResetTTL() time.Duration {
	return time.Duration(c.Auth.ResetTTLMinutes) * time.Minute
}

// CooldownWindow returns the minimum delay between OTP sends per address.
func (c Config) CooldownWindow() time.Duration {
	return time.Duration(c.Redis.CooldownSeconds) * time.Second
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("LITVI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/store.db")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cooldownseconds", 30)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.sessionttlminutes", 60)
	v.SetDefault("auth.resetttlminutes", 10)
	v.SetDefault("auth.requireverified", false)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@litvi.store")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
