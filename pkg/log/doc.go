/*
Package log provides structured logging for docstream using zerolog.

Init configures the global logger once at startup (level plus JSON or
console output); packages then derive component loggers:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("queue")
	logger.Info().Str("document_id", id).Msg("document enqueued")

All output is structured, so production logs filter cleanly by component,
document_id, and level.
*/
package log
