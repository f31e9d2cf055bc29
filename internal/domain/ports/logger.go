package ports

// Logger is the structured logging seam used across services and handlers.
// The zap adapter in internal/adapters/logging backs it in production.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
}

// Field is one structured logging key/value pair
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field under the conventional "error" key
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
