package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app/configs")

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The spec's configuration keys (§6) are bound without the APP_ prefix
	// so deployments can set them directly alongside the generic APP_*
	// overrides above.
	viper.BindEnv("vehicle.vin", "VIN")
	viper.BindEnv("vehicle.home_latitude", "HOME_LATITUDE")
	viper.BindEnv("vehicle.home_longitude", "HOME_LONGITUDE")
	viper.BindEnv("vehicle.home_radius", "HOME_RADIUS")
	viper.BindEnv("vehicle.client_id", "CLIENT_ID")
	viper.BindEnv("vehicle.client_secret", "CLIENT_SECRET")
	viper.BindEnv("vehicle.domain", "DOMAIN")
	viper.BindEnv("vehicle.cloud_base_url", "CLOUD_BASE_URL")
	viper.BindEnv("vehicle.public_key_url", "PUBLIC_KEY_URL")
	viper.BindEnv("vehicle.private_key_path", "PRIVATE_KEY_PATH")
	viper.BindEnv("vehicle.proxy_host", "PROXY_HOST")
	viper.BindEnv("vehicle.proxy_port", "PROXY_PORT")
	viper.BindEnv("worker.worker_url", "WORKER_URL")
	viper.BindEnv("pricing.api_url", "PRICING_API_URL")
	viper.BindEnv("pricing.api_key", "PRICING_API_KEY")
	viper.BindEnv("pricing.battery_capacity_kwh", "BATTERY_CAPACITY_KWH")
	viper.BindEnv("pricing.charging_rate_kw", "CHARGING_RATE_KW")
	viper.BindEnv("sheet.url", "SHEET_URL")
	viper.BindEnv("sheet.service_account_key_path", "SHEET_SERVICE_ACCOUNT_KEY")
	viper.BindEnv("scheduler.project_id", "PROJECT_ID")
	viper.BindEnv("scheduler.region", "REGION")
	viper.BindEnv("planner.peak_intervals", "PEAK_INTERVALS")
	viper.BindEnv("database.uri", "DATABASE_URI", "APP_DATABASE_URI")
	viper.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	viper.BindEnv("nats.url", "NATS_URL", "APP_NATS_URL")
	viper.BindEnv("vault.address", "VAULT_ADDR", "VAULT_ADDRESS")
	viper.BindEnv("vault.token", "VAULT_TOKEN")
	viper.BindEnv("jwt.secret", "JWT_SECRET", "APP_JWT_SECRET")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
