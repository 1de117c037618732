// Package errors defines error types for the interpreter process engine.
//
// This package provides structured error types for the failure scenarios
// of launching and driving interpreter subprocesses. All error types
// support error unwrapping and can be checked using errors.Is, errors.As,
// and errors.AsType.
package errors
