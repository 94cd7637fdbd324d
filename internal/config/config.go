package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

// Config captures the full configuration surface of the dialer.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Scylla     ScyllaConfig     `mapstructure:"scylla"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Dialer     DialerConfig     `mapstructure:"dialer"`
	Telephony  TelephonyConfig  `mapstructure:"telephony"`
	LeadSource LeadSourceConfig `mapstructure:"lead_source"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type PostgresConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	DisableInitSchema bool          `mapstructure:"disable_init_schema"`
}

type ScyllaConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Hosts             []string      `mapstructure:"hosts"`
	Port              int           `mapstructure:"port"`
	Keyspace          string        `mapstructure:"keyspace"`
	Consistency       string        `mapstructure:"consistency"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DisableInitSchema bool          `mapstructure:"disable_init_schema"`
}

type KafkaConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Brokers            []string      `mapstructure:"brokers"`
	ClientID           string        `mapstructure:"client_id"`
	EventTopic         string        `mapstructure:"event_topic"`
	ProviderEventTopic string        `mapstructure:"provider_event_topic"`
	ConsumerGroupID    string        `mapstructure:"consumer_group_id"`
	CommitInterval     time.Duration `mapstructure:"commit_interval"`
	Partitions         int           `mapstructure:"partitions"`
	ReplicationFactor  int           `mapstructure:"replication_factor"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	EventChannel string        `mapstructure:"event_channel"`
	StateKey     string        `mapstructure:"state_key"`
	StateTTL     time.Duration `mapstructure:"state_ttl"`
}

type TelemetryConfig struct {
	Endpoint        string            `mapstructure:"endpoint"`
	ServiceName     string            `mapstructure:"service_name"`
	Headers         map[string]string `mapstructure:"headers"`
	SampleRatio     float64           `mapstructure:"sample_ratio"`
	Insecure        bool              `mapstructure:"insecure"`
	TracingEnabled  bool              `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout"`
}

// DialerConfig tunes the engine.
type DialerConfig struct {
	ParallelCalls  int             `mapstructure:"parallel_calls"`
	CallTimeout    time.Duration   `mapstructure:"call_timeout"`
	WaitAfterCall  time.Duration   `mapstructure:"wait_after_call"`
	PollInterval   time.Duration   `mapstructure:"poll_interval"`
	DialStagger    time.Duration   `mapstructure:"dial_stagger"`
	AgentExtension string          `mapstructure:"agent_extension"`
	EventBuffer    int             `mapstructure:"event_buffer"`
	TimeZone       string          `mapstructure:"time_zone"`
	CallingHours   []CallingWindow `mapstructure:"calling_hours"`
}

// CallingWindow is a weekly window in which dialing is allowed. Start and
// End are "HH:MM" in the dialer time zone; End before Start spans midnight.
type CallingWindow struct {
	Day   string `mapstructure:"day"`
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type TelephonyConfig struct {
	Provider       string             `mapstructure:"provider"`
	RequestTimeout time.Duration      `mapstructure:"request_timeout"`
	OnlinePBX      OnlinePBXConfig    `mapstructure:"onlinepbx"`
	Mock           MockProviderConfig `mapstructure:"mock"`
}

type OnlinePBXConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	Domain         string        `mapstructure:"domain"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MockProviderConfig drives the call simulator.
type MockProviderConfig struct {
	SuccessRate    float64       `mapstructure:"success_rate"`
	AnswerRate     float64       `mapstructure:"answer_rate"`
	OmitCallIDRate float64       `mapstructure:"omit_call_id_rate"`
	Latency        time.Duration `mapstructure:"latency"`
	RingDelay      time.Duration `mapstructure:"ring_delay"`
	TalkTime       time.Duration `mapstructure:"talk_time"`
	NoAnswerAfter  time.Duration `mapstructure:"no_answer_after"`
	Seed           int64         `mapstructure:"seed"`
}

type LeadSourceConfig struct {
	Kind      string       `mapstructure:"kind"`
	BatchSize int          `mapstructure:"batch_size"`
	Static    []StaticLead `mapstructure:"static"`
}

type StaticLead struct {
	ID          string `mapstructure:"id"`
	Phone       string `mapstructure:"phone"`
	DisplayName string `mapstructure:"display_name"`
	Link        string `mapstructure:"link"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("DIALER")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "predictive-dialer")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("dialer.parallel_calls", 2)
	v.SetDefault("dialer.call_timeout", 30*time.Second)
	v.SetDefault("dialer.wait_after_call", 3*time.Minute)
	v.SetDefault("dialer.poll_interval", 500*time.Millisecond)
	v.SetDefault("dialer.dial_stagger", 1500*time.Millisecond)
	v.SetDefault("dialer.agent_extension", "100")
	v.SetDefault("dialer.event_buffer", 512)
	v.SetDefault("dialer.time_zone", "UTC")

	v.SetDefault("telephony.provider", "mock")
	v.SetDefault("telephony.request_timeout", 10*time.Second)
	v.SetDefault("telephony.onlinepbx.api_url", "https://api2.onlinepbx.ru")
	v.SetDefault("telephony.mock.success_rate", 0.9)
	v.SetDefault("telephony.mock.answer_rate", 0.3)
	v.SetDefault("telephony.mock.omit_call_id_rate", 0.2)
	v.SetDefault("telephony.mock.latency", 200*time.Millisecond)
	v.SetDefault("telephony.mock.ring_delay", 5*time.Second)
	v.SetDefault("telephony.mock.talk_time", 20*time.Second)

	v.SetDefault("lead_source.kind", "static")
	v.SetDefault("lead_source.batch_size", 50)

	v.SetDefault("kafka.event_topic", "dialer.events")
	v.SetDefault("kafka.consumer_group_id", "predictive-dialer")
	v.SetDefault("kafka.commit_interval", time.Second)
	v.SetDefault("kafka.partitions", 6)
	v.SetDefault("kafka.replication_factor", 1)

	v.SetDefault("redis.event_channel", "dialer:events")
	v.SetDefault("redis.state_key", "dialer:state")
	v.SetDefault("redis.state_ttl", 10*time.Minute)

	v.SetDefault("telemetry.service_name", "predictive-dialer")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.shutdown_timeout", 5*time.Second)

	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)

	v.SetDefault("scylla.port", 9042)
	v.SetDefault("scylla.consistency", "local_quorum")
	v.SetDefault("scylla.timeout", 5*time.Second)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	d := c.Dialer
	switch {
	case d.ParallelCalls < 1:
		return fmt.Errorf("%w: config: dialer.parallel_calls must be at least 1", apperrors.ErrValidation)
	case d.CallTimeout <= 0:
		return fmt.Errorf("%w: config: dialer.call_timeout must be positive", apperrors.ErrValidation)
	case d.WaitAfterCall < 0:
		return fmt.Errorf("%w: config: dialer.wait_after_call must not be negative", apperrors.ErrValidation)
	case d.PollInterval <= 0:
		return fmt.Errorf("%w: config: dialer.poll_interval must be positive", apperrors.ErrValidation)
	case strings.TrimSpace(d.AgentExtension) == "":
		return fmt.Errorf("%w: config: dialer.agent_extension is required", apperrors.ErrValidation)
	}

	switch c.Telephony.Provider {
	case "mock":
	case "onlinepbx":
		if c.Telephony.OnlinePBX.Domain == "" || c.Telephony.OnlinePBX.APIKey == "" {
			return fmt.Errorf("%w: config: telephony.onlinepbx domain and api_key are required", apperrors.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: config: unknown telephony.provider %q", apperrors.ErrValidation, c.Telephony.Provider)
	}

	switch c.LeadSource.Kind {
	case "static":
	case "postgres":
		if !c.Postgres.Enabled {
			return fmt.Errorf("%w: config: lead_source.kind postgres requires postgres.enabled", apperrors.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: config: unknown lead_source.kind %q", apperrors.ErrValidation, c.LeadSource.Kind)
	}

	return nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}
