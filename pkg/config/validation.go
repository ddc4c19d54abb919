package config

import (
	"fmt"
)

// validate checks the configuration for the missing or malformed keys that
// spec.md classifies as ConfigError — fatal at startup, never recoverable
// in-process.
func validate(cfg *Config) error {
	if cfg.Collector.LogServerEndpoint.Port <= 0 || cfg.Collector.LogServerEndpoint.Port > 65535 {
		return fmt.Errorf("collector.log_server_endpoint.port must be between 1 and 65535")
	}

	if cfg.PersistenceManager.PgConnInfo == "" {
		return fmt.Errorf("persistence_manager.pg_conn_info is required")
	}
	if cfg.PersistenceManager.CallInactivityPeriod <= 0 {
		return fmt.Errorf("persistence_manager.call_inactivity_period must be positive")
	}
	if cfg.PersistenceManager.MaintenanceFrequency <= 0 {
		return fmt.Errorf("persistence_manager.maintenance_frequency must be positive")
	}
	if cfg.Basic.Mp3Mode == 1 && cfg.PersistenceManager.Mp3ConverterCommandTemplate == "" {
		return fmt.Errorf("persistence_manager.mp3_converter_command_template is required when basic.mp3_mode=1")
	}

	if cfg.Basic.Mp3Mode != 0 && cfg.Basic.Mp3Mode != 1 {
		return fmt.Errorf("basic.mp3_mode must be 0 (wav) or 1 (mp3), got %d", cfg.Basic.Mp3Mode)
	}

	if cfg.MediaManager.MediaServerEndpoint.Port < 0 || cfg.MediaManager.MediaServerEndpoint.Port > 65535 {
		return fmt.Errorf("media_manager.media_server_endpoint.port must be between 0 and 65535")
	}
	if cfg.MediaManager.Player.CallInactivityPeriod <= 0 {
		return fmt.Errorf("media_manager.player.call_inactivity_period must be positive")
	}
	if cfg.MediaManager.Player.MaintenanceFrequency <= 0 {
		return fmt.Errorf("media_manager.player.maintenance_frequency must be positive")
	}

	for name, feeder := range cfg.MediaManager.Feeders {
		if feeder.Type != "M" && feeder.Type != "S" {
			return fmt.Errorf("media_manager.feeders.%s: type must be M or S, got %q", name, feeder.Type)
		}
		if feeder.Port <= 0 || feeder.Port > 65535 {
			return fmt.Errorf("media_manager.feeders.%s: port must be between 1 and 65535", name)
		}
		if feeder.IP == "" {
			return fmt.Errorf("media_manager.feeders.%s: ip is required", name)
		}
	}

	for name, inst := range cfg.MediaManager.Player.Instances {
		if inst.Feeder != "" {
			if _, ok := cfg.MediaManager.Feeders[inst.Feeder]; !ok {
				return fmt.Errorf("media_manager.player.instances.%s: feeder %q not found", name, inst.Feeder)
			}
		}
	}

	if cfg.TracerManager.PublishOneJSONVoiceMsgEvery < 0 {
		return fmt.Errorf("tracer_manager.publish_one_json_voice_msg_every must be non-negative")
	}

	return nil
}
