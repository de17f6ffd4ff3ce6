package core

// Logger is any structured logger of the app.
// Expected args: error, map[string]interface{}, user.User (the logged-in User, reported as the "person").
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
