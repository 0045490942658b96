/*
Package log provides structured logging for Courier using zerolog.

A single package-level zerolog.Logger is configured once via Init and
read from everywhere else, with component/resource-scoped child loggers
built through With* helpers. New builds a logger from a Config without
touching the package-level instance, for callers that need one in
isolation.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	log.Logger.Info().Str("addr", addr).Msg("http server listening")

	topicLog := log.WithTopic("orders")
	topicLog.Info().Msg("topic created")

	subLog := log.WithSubscription("billing")
	subLog.Warn().Int("tries", 3).Msg("message redelivered")

# Levels

Debug, Info, Warn, and Error map directly onto zerolog's levels; Fatal
logs and then exits the process. Info is the default production level.

# Output

JSONOutput selects JSON (production) or zerolog's ConsoleWriter
(development, human-readable) framing; Output defaults to os.Stdout.
*/
package log
