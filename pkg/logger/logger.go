package logger

// Info printf-style info line
func Info(format string, args ...interface{}) {
	zlog.Info().Msgf(format, args...)
}

// Warn printf-style warn line
func Warn(format string, args ...interface{}) {
	zlog.Warn().Msgf(format, args...)
}

// Error printf-style error line
func Error(format string, args ...interface{}) {
	zlog.Error().Msgf(format, args...)
}

// Fatal logs and exits the process
func Fatal(format string, args ...interface{}) {
	zlog.Fatal().Msgf(format, args...)
}
