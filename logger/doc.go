// Package logger provides structured logging for teashell using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields. The process engine never
// logs through a package-level logger: it receives one explicitly and falls
// back to Nop.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.New(&cfg, "deploy").WithComponent("engine")
//	log.Info("process exited", logger.Fields(logger.FieldPID, 4242, logger.FieldExitCode, 0))
package logger
