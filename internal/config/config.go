package config

import (
	"strings"
	"time"
)

// Environment names accepted in ProjectConfig.Environment.
const (
	EnvironmentLocal      = "local"
	EnvironmentStaging    = "staging"
	EnvironmentProduction = "production"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Project   ProjectConfig   `mapstructure:"project" validate:"required"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Superuser SuperuserConfig `mapstructure:"superuser" validate:"required"`
	Users     UsersConfig     `mapstructure:"users"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Broker    BrokerConfig    `mapstructure:"broker" validate:"required"`
	Results   ResultsConfig   `mapstructure:"results" validate:"required"`
	SSO       SSOConfig       `mapstructure:"sso" validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ProjectConfig contains settings shared by every process of the stack.
type ProjectConfig struct {
	Name         string   `mapstructure:"name" validate:"required"`
	Environment  string   `mapstructure:"environment" validate:"required,oneof=local staging production"`
	FrontendHost string   `mapstructure:"frontend_host" validate:"required,url"`
	CORSOrigins  []string `mapstructure:"cors_origins" validate:"dive,url"`
}

// AllCORSOrigins returns the configured origins with trailing slashes removed,
// followed by the frontend host.
func (p ProjectConfig) AllCORSOrigins() []string {
	origins := make([]string, 0, len(p.CORSOrigins)+1)
	for _, o := range p.CORSOrigins {
		origins = append(origins, strings.TrimRight(o, "/"))
	}
	return append(origins, p.FrontendHost)
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	SecretKey                 string        `mapstructure:"secret_key" validate:"required,min=32"`
	AccessTokenLifetime       time.Duration `mapstructure:"access_token_lifetime" validate:"gt=0"`
	VerificationTokenLifetime time.Duration `mapstructure:"verification_token_lifetime" validate:"gt=0"`
	BcryptCost                int           `mapstructure:"bcrypt_cost" validate:"min=4,max=31"`
}

// SuperuserConfig describes the account seeded at server start.
type SuperuserConfig struct {
	Email    string `mapstructure:"email" validate:"required,email"`
	Password string `mapstructure:"password" validate:"required,min=8,max=72"`
}

// UsersConfig controls self-service account creation.
type UsersConfig struct {
	OpenRegistration bool `mapstructure:"open_registration"`
}

// SMTPConfig contains outgoing mail settings.
type SMTPConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port" validate:"gt=0,lt=65536"`
	TLS       bool   `mapstructure:"tls"`
	SSL       bool   `mapstructure:"ssl"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	FromEmail string `mapstructure:"from_email" validate:"omitempty,email"`
	FromName  string `mapstructure:"from_name"`
}

// EmailsEnabled reports whether enough settings are present to send mail.
func (s SMTPConfig) EmailsEnabled() bool {
	return s.Host != "" && s.FromEmail != ""
}

// BrokerConfig selects and configures the task message broker.
type BrokerConfig struct {
	Driver    string `mapstructure:"driver" validate:"required,oneof=rabbitmq redis memory"`
	URL       string `mapstructure:"url" validate:"required_if=Driver rabbitmq"`
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
}

// ResultsConfig selects and configures the task result backend.
type ResultsConfig struct {
	Driver       string        `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	Expires      time.Duration `mapstructure:"expires" validate:"gte=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

// SSOClientConfig holds the OAuth client registered for one frontend app.
type SSOClientConfig struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
}

// SSOConfig contains the FusionAuth endpoints and registered clients.
type SSOConfig struct {
	AuthorizeURL  string          `mapstructure:"authorize_url" validate:"required,url"`
	TokenURL      string          `mapstructure:"token_url" validate:"required,url"`
	UserinfoURL   string          `mapstructure:"userinfo_url" validate:"required,url"`
	AppA          SSOClientConfig `mapstructure:"app_a" validate:"required"`
	AppB          SSOClientConfig `mapstructure:"app_b" validate:"required"`
	StateStore    string          `mapstructure:"state_store" validate:"required,oneof=memory redis"`
	RedisAddr     string          `mapstructure:"redis_addr" validate:"required_if=StateStore redis"`
	StateLifetime time.Duration   `mapstructure:"state_lifetime" validate:"gt=0"`
}

// WorkerConfig configures a task worker process.
type WorkerConfig struct {
	Name        string   `mapstructure:"name"`
	Queues      []string `mapstructure:"queues"`
	Concurrency int      `mapstructure:"concurrency" validate:"gte=1"`
	Prefetch    int      `mapstructure:"prefetch" validate:"gte=1"`
	MetricsPort int      `mapstructure:"metrics_port" validate:"gte=0,lt=65536"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}
