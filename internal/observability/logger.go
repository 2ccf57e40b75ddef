package observability

import (
	"github.com/danmuck/amqpwire/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime logger and returns it tagged with app.
func InitLogger(app string, file logging.FileConfig) zerolog.Logger {
	logging.ConfigureRuntime(file)
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
