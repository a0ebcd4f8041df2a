package config

// NotifxConfig configures the notification system.
type NotifxConfig struct {
	// Provider is one of console, ses or smtp
	Provider    string
	FromAddress string
	FromName    string
	AWSRegion   string
}

// SMTPConfig is the mail server every realm is created with, and the one
// the smtp notifx provider sends through.
type SMTPConfig struct {
	Host     string
	Port     int
	Auth     bool
	StartTLS bool
	Username string
	Password string
	From     string
}

func loadNotifxConfig() NotifxConfig {
	return NotifxConfig{
		Provider:    getEnv("NOTIFX_PROVIDER", "console"),
		FromAddress: getEnv("NOTIFX_FROM_ADDRESS", getEnv("SMTP_FROM", "noreply@secufusion.io")),
		FromName:    getEnv("NOTIFX_FROM_NAME", "Secufusion"),
		AWSRegion:   getEnv("NOTIFX_AWS_REGION", getEnv("AWS_REGION", "us-east-1")),
	}
}

func loadSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     getEnvInt("SMTP_PORT", 587),
		Auth:     getEnvBool("SMTP_AUTH", true),
		StartTLS: getEnvBool("SMTP_STARTTLS", true),
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", ""),
	}
}
