package config

const (
	defaultDataDir            = "~/.local/share/cellar/store"
	defaultLogDir             = "~/.local/share/cellar/logs"
	defaultAPIBind            = "127.0.0.1:7411"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultCheckpointInterval = 300
	defaultSegmentMaxBytes    = 4 << 20
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Store: Store{
			CheckpointInterval: defaultCheckpointInterval,
			SegmentMaxBytes:    defaultSegmentMaxBytes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
