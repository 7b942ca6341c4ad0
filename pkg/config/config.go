package config

import "time"

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	Vehicle        VehicleConfig        `mapstructure:"vehicle"`
	Worker         WorkerConfig         `mapstructure:"worker"`
	Pricing        PricingConfig        `mapstructure:"pricing"`
	Sheet          SheetConfig          `mapstructure:"sheet"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	Planner        PlannerConfig        `mapstructure:"planner"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	NATS           NATSConfig           `mapstructure:"nats"`
	Vault          VaultConfig          `mapstructure:"vault"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	Prometheus     PrometheusConfig     `mapstructure:"prometheus"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	RateLimiting   RateLimitingConfig   `mapstructure:"rate_limiting"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	CORS           CORSConfig           `mapstructure:"cors"`
	Security       SecurityConfig       `mapstructure:"security"`
	Region         RegionConfig         `mapstructure:"region"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// VehicleConfig addresses the single owned vehicle and its OAuth app
// identity (spec §6: HOME_LATITUDE, HOME_LONGITUDE, HOME_RADIUS, CLIENT_ID,
// CLIENT_SECRET, DOMAIN, PUBLIC_KEY_URL, PRIVATE_KEY_PATH, PROXY_HOST,
// PROXY_PORT).
type VehicleConfig struct {
	VIN            string        `mapstructure:"vin"`
	HomeLatitude   float64       `mapstructure:"home_latitude"`
	HomeLongitude  float64       `mapstructure:"home_longitude"`
	HomeRadius     float64       `mapstructure:"home_radius"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	Domain         string        `mapstructure:"domain"`
	CloudBaseURL   string        `mapstructure:"cloud_base_url"`
	PublicKeyURL   string        `mapstructure:"public_key_url"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	ProxyHost      string        `mapstructure:"proxy_host"`
	ProxyPort      string        `mapstructure:"proxy_port"`
	WakeTimeout    time.Duration `mapstructure:"wake_timeout"`
	WakePoll       time.Duration `mapstructure:"wake_poll"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// WorkerConfig carries the Worker's own externally-reachable address and the
// scheduler identity it authenticates dynamic jobs with.
type WorkerConfig struct {
	WorkerURL         string `mapstructure:"worker_url"`
	SchedulerIdentity string `mapstructure:"scheduler_identity"`
}

// PricingConfig addresses the external pricing API (spec §6: PRICING_API_URL,
// PRICING_API_KEY) plus the vehicle physics constants carried in every
// pricing request.
type PricingConfig struct {
	APIURL             string        `mapstructure:"api_url"`
	APIKey             string        `mapstructure:"api_key"`
	Timeout            time.Duration `mapstructure:"timeout"`
	BatteryCapacityKWh float64       `mapstructure:"battery_capacity_kwh"`
	ChargingRateKW     float64       `mapstructure:"charging_rate_kw"`
	Consumption        float64       `mapstructure:"consumption"`
	DailyMileage       float64       `mapstructure:"daily_mileage"`
	OptimalUpper       float64       `mapstructure:"optimal_upper"`
	OptimalLower       float64       `mapstructure:"optimal_lower"`
	Emergency          float64       `mapstructure:"emergency"`
}

// SheetConfig addresses the special-charging request spreadsheet (spec §6:
// SHEET_URL, SHEET_SERVICE_ACCOUNT_KEY).
type SheetConfig struct {
	URL                   string        `mapstructure:"url"`
	ServiceAccountKeyPath string        `mapstructure:"service_account_key_path"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig addresses the external Dynamic Scheduler (spec §6:
// PROJECT_ID, REGION).
type SchedulerConfig struct {
	ProjectID             string        `mapstructure:"project_id"`
	Region                string        `mapstructure:"region"`
	APIURL                string        `mapstructure:"api_url"`
	ServiceAccountKeyPath string        `mapstructure:"service_account_key_path"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

// PlannerConfig carries the strategy-cascade tuning (spec §6: PEAK_INTERVALS).
type PlannerConfig struct {
	PeakIntervals []string `mapstructure:"peak_intervals"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// VaultConfig addresses the secret store holding the single global Token
// Record.
type VaultConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
}

// JWTConfig signs the service-identity tokens Worker's internal HTTP surface
// requires (no end-user login in this system).
type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Duration time.Duration `mapstructure:"duration"`
}

type OpenTelemetryConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	Jaeger      JaegerConfig `mapstructure:"jaeger"`
	ServiceName string       `mapstructure:"service_name"`
}

type JaegerConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	SamplerType  string  `mapstructure:"sampler_type"`
	SamplerParam float64 `mapstructure:"sampler_param"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type RateLimitingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      int           `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}

type SecurityConfig struct {
	EnableHTTPS bool   `mapstructure:"enable_https"`
	TLSCertPath string `mapstructure:"tls_cert_path"`
	TLSKeyPath  string `mapstructure:"tls_key_path"`
}

// RegionConfig carries the IANA timezone used for every local-time
// computation in the spec (HOME schedule minutes-of-day, midnight wake,
// log summary lines): spec's Warsaw-local references are a deployment
// choice, not a hardcoded constant.
type RegionConfig struct {
	Timezone string `mapstructure:"timezone"`
}
