// Package logger provides the structured logging interface used across igloader.
//
// It wraps zerolog behind a small Logger interface so packages can take a
// logger as a dependency and tests can swap in NewTestLogger or NewNopLogger.
//
//	cfg := &config.LoggingConfig{Level: "info", Format: "json"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.GetLogger().WithField("component", "api")
//	log.InfoWithFields("request served", map[string]interface{}{
//	    "status": 200,
//	    "path":   "/health",
//	})
//
// Console output uses colored levels unless Format is "json". When File is
// set every line is also appended to that file as JSON.
package logger
