// Package logging provides a simple leveled logging interface for the
// blend browser, backed by logrus with optional rotated file output.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The level and output are normally set once from configuration via Setup;
// without it the LOG_LEVEL environment variable applies.
package logging
