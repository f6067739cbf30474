// Package logger provides a singleton Zap logger with context-based scoping.
//
// Initialization (once, in main):
//
//	logger.Init(logger.Config{
//	    Env:   os.Getenv("APP_ENV"),   // "dev" or "prod"
//	    Level: os.Getenv("LOG_LEVEL"), // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// In validators/services (with context):
//
//	log := logger.From(ctx)
//	log.Info("request validated", logger.ClientID(id))
//
// Without context (falls back to the singleton):
//
//	logger.L().Info("server started")
package logger
