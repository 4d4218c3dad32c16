package errors

import (
	"errors"
)

const (
	CodeConfigNotFound          = "CONFIG_NOT_FOUND"
	CodeInvalidPlan             = "INVALID_PLAN"
	CodeCloneFailure            = "CLONE_FAILURE"
	CodeCopyFailure             = "COPY_FAILURE"
	CodeGuardEvaluation         = "GUARD_EVALUATION"
	CodeShellStepFailure        = "SHELL_STEP_FAILURE"
	CodeScriptDelegationFailure = "SCRIPT_DELEGATION_FAILURE"
)

// Types ////////////////////////////////////////

type CodedError interface {
	Code() string
}

type codedError struct {
	code  string
	msg   string
	cause error
}

func (e *codedError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *codedError) Code() string {
	return e.code
}

func (e *codedError) Unwrap() error {
	return e.cause
}

// Error Creators ///////////////////////////////

// The provision.yaml named on the command line or in the environment was not found
func ConfigNotFound(msg string) error {
	return &codedError{code: CodeConfigNotFound, msg: msg}
}

// A plan file failed schema validation or named an unknown method
func InvalidPlan(msg string, cause error) error {
	return &codedError{code: CodeInvalidPlan, msg: msg, cause: cause}
}

// A guard expression could not be parsed
func GuardEvaluation(msg string, cause error) error {
	return &codedError{code: CodeGuardEvaluation, msg: msg, cause: cause}
}

// A script.start step named a script this build does not provide
func ScriptDelegation(msg string) error {
	return &codedError{code: CodeScriptDelegationFailure, msg: msg}
}

// Helpers //////////////////////////////////////

func IsConfigNotFound(err error) bool {
	return Code(err) == CodeConfigNotFound
}

func IsGuardEvaluation(err error) bool {
	return Code(err) == CodeGuardEvaluation
}

// Return the first error code found in the wrap chain, or the empty string
func Code(err error) string {
	var cerr CodedError
	if errors.As(err, &cerr) {
		return cerr.Code()
	}
	return ""
}
