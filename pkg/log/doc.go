/*
Package log provides structured logging for the command layer using zerolog.

The dispatcher (and cmd/jongodb serve) log through a component-scoped
child logger built from the global instance with WithComponent; the
cursor registry logs through WithCursorID. Domain-specific child-logger
helpers (WithSessionID, WithCursorID, WithNamespace, WithTxnNumber) add
request-scoped fields that show up across many log lines for a single
command. The transaction coordinator and the handlers do not log.

Configure once at process start:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("dispatch")
	logger.Info().Str("command", name).Msg("dispatched")
*/
package log
