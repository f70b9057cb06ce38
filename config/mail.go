package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type MailSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// GetMailSettings reads the SMTP transport from env. SMTP_USERNAME defaults to SMTP_SENDER.
func GetMailSettings() MailSettings {
	sender := strings.TrimSpace(os.Getenv("SMTP_SENDER"))
	username := strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	if username == "" {
		username = sender
	}
	return MailSettings{
		Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Port:     intFromEnv("SMTP_PORT", 587),
		Username: username,
		Password: os.Getenv("SMTP_PASSWORD"),
		Sender:   sender,
	}
}

func (s MailSettings) Configured() bool {
	return s.Host != "" && s.Sender != ""
}
