package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Options controls how a Logger is built. The zero value is a development
// logger with redaction enabled and no hash salt.
type Options struct {
	Mode             string
	DisableRedaction bool
	HashSalt         string
}

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	redact        redactor
}

func New(mode string) (*Logger, error) {
	return NewWithOptions(Options{Mode: mode})
}

func NewWithOptions(opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
		redact:        redactor{enabled: !opts.DisableRedaction, salt: opts.HashSalt},
	}, nil
}

// Nop returns a logger that discards everything. Handy for tests and for
// components constructed without a logger.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.redact.kvs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.redact.kvs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.redact.kvs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.redact.kvs(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.redact.kvs(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(l.redact.kvs(keysAndValues)...),
		redact:        l.redact,
	}
}

// Printf lets the logger stand in for libraries that expect a printf-style
// sink (gorm's logger writer, for one).
func (l *Logger) Printf(format string, args ...interface{}) {
	l.SugaredLogger.Infof(format, args...)
}

type redactor struct {
	enabled bool
	salt    string
}

func (r redactor) kvs(kv []interface{}) []interface{} {
	if len(kv) == 0 || !r.enabled {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := strings.TrimSpace(strings.ToLower(toString(kv[i])))
		out = append(out, toString(kv[i]), r.value(key, kv[i+1]))
	}
	return out
}

func (r redactor) value(key string, val interface{}) interface{} {
	if key == "" {
		return val
	}
	if isRedactKey(key) {
		return "[REDACTED]"
	}
	if isHashKey(key) {
		return r.hash(val)
	}
	if m, ok := val.(map[string]interface{}); ok {
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = r.value(strings.TrimSpace(strings.ToLower(k)), v)
		}
		return out
	}
	return val
}

func isRedactKey(key string) bool {
	switch {
	case strings.Contains(key, "token"),
		strings.Contains(key, "authorization"),
		strings.Contains(key, "password"),
		strings.Contains(key, "secret"),
		strings.Contains(key, "api_key"),
		strings.Contains(key, "apikey"),
		strings.Contains(key, "dsn"):
		return true
	default:
		return false
	}
}

func isHashKey(key string) bool {
	return strings.Contains(key, "user_id")
}

func (r redactor) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	if r.salt != "" {
		_, _ = h.Write([]byte(r.salt))
	}
	_, _ = h.Write([]byte(raw))
	sum := hex.EncodeToString(h.Sum(nil))
	return "hash:" + sum[:12]
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
