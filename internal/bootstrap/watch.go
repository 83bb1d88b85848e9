package bootstrap

import (
	"os"

	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
)

// WatchLogLevel follows log.level in configPath so the level can be raised
// on a running process.  Nothing is watched when the file does not exist.
func WatchLogLevel(configPath string, logger logging.Logger) {
	if _, err := os.Stat(configPath); err != nil {
		return
	}
	err := config.Watch(configPath, func(c *config.Config) {
		if logging.SetLevel(logger, c.Log.Level) {
			logger.Info("log level updated", logging.String("level", c.Log.Level))
		}
	}, func(err error) {
		logger.Warn("ignoring invalid configuration change", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}
