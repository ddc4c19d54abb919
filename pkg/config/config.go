package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Collector          CollectorConfig          `mapstructure:"collector"`
	PersistenceManager PersistenceManagerConfig `mapstructure:"persistence_manager"`
	MediaManager       MediaManagerConfig       `mapstructure:"media_manager"`
	TracerManager      TracerManagerConfig      `mapstructure:"tracer_manager"`
	Basic              BasicConfig              `mapstructure:"basic"`
	Logging            LoggingConfig            `mapstructure:"logging"`
	Metrics            MetricsConfig            `mapstructure:"metrics"`
}

// BasicConfig holds flags that don't belong to any single worker.
type BasicConfig struct {
	Mp3Mode int `mapstructure:"mp3_mode"` // 0 = WAV, 1 = MP3
}

// EndpointConfig is a bindable or dialable IP:port pair.
type EndpointConfig struct {
	IP   string `mapstructure:"ip"`
	Port int    `mapstructure:"port"`
}

// CollectorConfig configures the Ingestor worker.
type CollectorConfig struct {
	LogServerEndpoint EndpointConfig   `mapstructure:"log_server_endpoint"`
	GenerateWavFiles  bool             `mapstructure:"generate_wav_files"`
	Subscriptions     map[string]string `mapstructure:"subscriptions"`
}

// PersistenceManagerConfig configures the Persister worker.
type PersistenceManagerConfig struct {
	PgConnInfo                  string            `mapstructure:"pg_conn_info"`
	Mp3ConverterCommandTemplate string            `mapstructure:"mp3_converter_command_template"`
	CallInactivityPeriod        int               `mapstructure:"call_inactivity_period"` // seconds
	MaintenanceFrequency        int               `mapstructure:"maintenance_frequency"`  // seconds
	Subscriptions                map[string]string `mapstructure:"subscriptions"`
}

// FeederConfig describes one outbound voice-forwarding socket.
type FeederConfig struct {
	Stream string `mapstructure:"stream"` // stream name, the last path element of the interception URL, e.g. "feed1"
	IP     string `mapstructure:"ip"`
	Port   int    `mapstructure:"port"`
	Type   string `mapstructure:"type"` // "M" mono or "S" stereo/duplex
}

// PlayerInstanceConfig describes one recorded-call playback slot.
type PlayerInstanceConfig struct {
	Stream string `mapstructure:"stream"`
	Feeder string `mapstructure:"feeder"` // name of the feeder_<n> entry to reuse, if any
}

// PlayerConfig configures the child-process player pool.
type PlayerConfig struct {
	CommandTemplate      string                          `mapstructure:"command_template"`
	FilenameTemplate     string                          `mapstructure:"filename_template"`
	VoicerecRepo         string                          `mapstructure:"voicerec_repo"`
	VoicerecURL          string                          `mapstructure:"voicerec_url"`
	CallInactivityPeriod int                             `mapstructure:"call_inactivity_period"`
	MaintenanceFrequency int                             `mapstructure:"maintenance_frequency"`
	Instances            map[string]PlayerInstanceConfig `mapstructure:"instances"`
}

// MediaManagerConfig configures the Media Router worker.
type MediaManagerConfig struct {
	MediaServerEndpoint EndpointConfig          `mapstructure:"media_server_endpoint"`
	Player               PlayerConfig            `mapstructure:"player"`
	Feeders              map[string]FeederConfig `mapstructure:"feeders"`
	Subscriptions        map[string]string       `mapstructure:"subscriptions"`
}

// TracerManagerConfig configures the Tracer worker.
type TracerManagerConfig struct {
	JSONPublisher               string            `mapstructure:"json_publisher"`
	PublishOneJSONVoiceMsgEvery int               `mapstructure:"publish_one_json_voice_msg_every"`
	Subscriptions               map[string]string `mapstructure:"subscriptions"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics exporter configuration.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables.
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/csserver")
	}

	viper.SetEnvPrefix("CALLSTREAMSERVER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// fine, use defaults
		} else if os.IsNotExist(err) {
			// explicit path that doesn't exist is also fine
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("collector.log_server_endpoint.ip", "0.0.0.0")
	viper.SetDefault("collector.log_server_endpoint.port", 9000)
	viper.SetDefault("collector.generate_wav_files", false)

	viper.SetDefault("persistence_manager.call_inactivity_period", 60)
	viper.SetDefault("persistence_manager.maintenance_frequency", 30)

	viper.SetDefault("basic.mp3_mode", 0)

	viper.SetDefault("media_manager.player.call_inactivity_period", 60)
	viper.SetDefault("media_manager.player.maintenance_frequency", 30)

	viper.SetDefault("tracer_manager.publish_one_json_voice_msg_every", 1)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}
