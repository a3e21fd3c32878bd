package orchestrator

import "fmt"

// TransportError wraps a failure to deliver an input or read a request
// through the SUT Transport Adapter (section 7). It is always resolved
// by restarting the SUT instance.
type TransportError struct{ Cause error }

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// DebuggerError wraps a failed command or a request/response timeout
// against the Debugger Adapter. Any DebuggerError is treated as a SUT
// crash unless it specifically originates from a wait_for_stop
// timeout, which the orchestrator reports as SUTTimeout instead.
type DebuggerError struct{ Cause error }

func (e *DebuggerError) Error() string { return fmt.Sprintf("debugger error: %v", e.Cause) }
func (e *DebuggerError) Unwrap() error { return e.Cause }

// AnalyzerUnavailable is the error type for an analyzer that has failed
// MAX_ANALYSIS_FAILS consecutive CFG rebuilds. The orchestrator does not
// return it: on reaching that limit it logs a warning, disables further
// CFG updates for the rest of the run and keeps fuzzing with the stale
// CFG.
type AnalyzerUnavailable struct{ Cause error }

func (e *AnalyzerUnavailable) Error() string {
	return fmt.Sprintf("analyzer unavailable: %v", e.Cause)
}
func (e *AnalyzerUnavailable) Unwrap() error { return e.Cause }

// ConfigError is the error type for a startup configuration failure.
// config.Load does not wrap its errors in it; every Load error is
// fatal to the CLI all the same.
type ConfigError struct{ Cause error }

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %v", e.Cause) }
func (e *ConfigError) Unwrap() error { return e.Cause }

// SUTCrash is an expected outcome: the SUT crashed and the input that
// triggered it, plus the derived fingerprint, have been recorded.
type SUTCrash struct {
	Fingerprint string
	Input       []byte
}

func (e *SUTCrash) Error() string { return fmt.Sprintf("SUT crash: %s", e.Fingerprint) }

// SUTTimeout is an expected outcome: the SUT failed to stop within
// single_run_timeout for the given input.
type SUTTimeout struct {
	Fingerprint string
	Input       []byte
}

func (e *SUTTimeout) Error() string { return fmt.Sprintf("SUT timeout: %s", e.Fingerprint) }
