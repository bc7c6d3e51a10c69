package models

// MConfig Structure
type MConfig struct {
	Name        string             `yaml:"name"`
	Host        string             `yaml:"host"`
	Port        int                `yaml:"port"`
	LogLevel    string             `yaml:"log_level"`
	GrpcHost    string             `yaml:"grpc_host"`
	GrpcPort    int                `yaml:"grpc_port"`
	API         MAPIConfig         `yaml:"api"`
	Credentials MCredentialsConfig `yaml:"credentials"`
	Pets        []int64            `yaml:"pets"`
	Polling     MPollingConfig     `yaml:"polling"`
	Storage     MStorageConfig     `yaml:"storage"`
	Network     MNetworkConfig     `yaml:"network"`
	Redis       MRedisConfig       `yaml:"redis"`
}

type MAPIConfig struct {
	BaseURL            string `yaml:"base_url"`
	RequestTimeout     int    `yaml:"timeout"`
	LanguageID         string `yaml:"language_id"`
	LoginEndpoint      string `yaml:"login_endpoint"`
	PetsEndpoint       string `yaml:"pets_endpoint"`
	ActivityEndpoint   string `yaml:"activity_endpoint"`
	UserAgent          string `yaml:"user_agent"`
	PasswordKey        string `yaml:"password_key"` // Optional, 32 bytes
	InsecureSkipVerify *bool  `yaml:"insecure_skip_verify"` // nil means true
}

// SkipTLSVerify reports whether certificate verification is disabled. The
// service is used with verification off unless the config says otherwise.
func (c MAPIConfig) SkipTLSVerify() bool {
	return c.InsecureSkipVerify == nil || *c.InsecureSkipVerify
}

// MCredentialsConfig never carries a password on disk; it is read from the
// environment only.
type MCredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"-"`
	Token    string `yaml:"token"`
}

type MPollingConfig struct {
	IntervalMinutes      int `yaml:"interval_minutes"`
	WindowDays           int `yaml:"window_days"`
	ValidationWindowDays int `yaml:"validation_window_days"`
	HistorySize          int `yaml:"history_size"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MNetworkConfig struct {
	Proxies []string `yaml:"proxies"`
}

type MRedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// GetLogLevel lets the logger pick its threshold from the config.
func (c *MConfig) GetLogLevel() string {
	return c.LogLevel
}
