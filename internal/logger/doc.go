// Package logger wraps zap with a global sugared logger and context helpers.
//
// The packager threads a context through every step; each step pulls its
// logger from the context (FromContext), so names and key-value pairs added
// with WithName and WithKV follow a function module through replication,
// manifest merging and dependency installation.
package logger
