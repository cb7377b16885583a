package core

// Logger is implemented by every logging backend.
// args may hold an error, a map[string]interface{} of extra data and the authenticated user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
