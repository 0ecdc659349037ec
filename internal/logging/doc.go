// Package logging provides slog loggers with a level per module.
//
// Records go to stderr, and also to the systemd journal when its socket is
// present. Standard output is never written; it carries rendered frames.
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"capture": "debug"},
//	})
//
//	logger := logging.GetLogger("session").With("device", path)
//	logger.Info("Format negotiated", "width", f.Width)
//
// Each module logger holds its own LevelVar, so SetModuleLevel also changes
// loggers handed out earlier.
//
// In the journal every attribute becomes an upper-case field and entries are
// tagged with SyslogIdentifier:
//
//	journalctl -t termcam MODULE=capture -p warning
//
// The termcam.toml equivalent of the example above:
//
//	[logging]
//	level = "info"
//	capture = "debug"
package logging
