package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("config",
	fx.Provide(NewViper),
	fx.Provide(Load),
	fx.Invoke(watchConfigFile),
)

// watchConfigFile only reports edits; running components keep the Config they
// were constructed with until restart.
func watchConfigFile(v *viper.Viper, log *zap.Logger) {
	if v.ConfigFileUsed() == "" {
		return
	}
	logger := log.Named("config")
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Warn("config file changed, restart to apply",
			zap.String("file", e.Name),
			zap.String("op", e.Op.String()),
		)
	})
	v.WatchConfig()
}
