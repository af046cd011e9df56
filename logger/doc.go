// Package logger provides structured logging built on zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers with map-based fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("bq")
//	log.Info("model trained", logger.Fields("model", ref.String()))
package logger
