package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config is the root configuration, loaded once at startup.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	InvoicePaid         string `mapstructure:"invoice_paid"`
	WithdrawalProcessed string `mapstructure:"withdrawal_processed"`
}

// GatewayConfig points at the external banking gateway. The gateway is an
// external collaborator; only its endpoint and merchant identity live here.
type GatewayConfig struct {
	Name        string `mapstructure:"name"`
	BaseURL     string `mapstructure:"base_url"`
	MerchantID  string `mapstructure:"merchant_id"`
	CallbackURL string `mapstructure:"callback_url"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

type BusinessConfig struct {
	DefaultCurrency     string `mapstructure:"default_currency"`
	MaxRetryCount       int    `mapstructure:"max_retry_count"`
	OverdueSweepMinutes int    `mapstructure:"overdue_sweep_minutes"`
}

var GlobalConfig *Config

// LoadConfig reads and parses the YAML configuration file.
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("read config file: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("parse config file: %v", err)
	}

	GlobalConfig = config
	return config
}
