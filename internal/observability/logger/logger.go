// Package logger provee el logger zap singleton del servicio.
//
// Init() se llama una vez en main; el resto del código usa Named("pkg") o
// L() directo. Si nadie llamó Init, L() levanta un logger dev por defecto.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configura el logger.
type Config struct {
	// Env: "dev" (consola con colores) o "prod" (JSON). Default: "dev".
	Env string
	// Level: "debug" | "info" | "warn" | "error". Default: "info".
	Level string
	// ServiceName aparece como campo "service" en cada línea. Opcional.
	ServiceName string
}

var (
	once     sync.Once
	instance *zap.Logger
)

// Init inicializa el singleton. Idempotente: solo la primera llamada cuenta.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L retorna el logger singleton.
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Named retorna un logger con nombre de componente.
func Named(name string) *zap.Logger { return L().Named(name) }

// With retorna un logger con campos persistentes (ej: domain en un service).
func With(fields ...zap.Field) *zap.Logger { return L().With(fields...) }

// Sync flushea buffers pendientes. Llamar con defer en main.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}

func build(cfg Config) *zap.Logger {
	level := parseLevel(cfg.Level)

	var zcfg zap.Config
	if strings.ToLower(cfg.Env) == "prod" {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zcfg.Build(zap.AddCaller())
	if err != nil {
		l, _ = zap.NewProduction()
	}
	if cfg.ServiceName != "" {
		l = l.With(zap.String("service", cfg.ServiceName))
	}
	return l
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ----- campos estándar del dominio -----

// Domain crea el campo del tenant.
func Domain(v string) zap.Field { return zap.String("domain", v) }

// ClientID crea el campo del client OAuth2.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// GrantType crea el campo del grant type.
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }

// RequestID crea el campo del request HTTP.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }
