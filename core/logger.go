package core

// Logger is any service that can log.
// args may carry errors, a map[string]interface{} of extra data, or the acting user's ID.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies who triggered a logged event.
type Person struct {
	ID    string
	Name  string
	Email string
}
