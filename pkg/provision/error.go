package provision

import (
	"errors"
	"fmt"

	perrors "github.com/provisionkit/provision/pkg/errors"
	"github.com/provisionkit/provision/pkg/plan"
)

var ErrNotIdle = errors.New("planner has already been run")

// ProvisioningError is returned by Execute when a step fails. Cause is the
// collaborator's error, unmodified.
type ProvisioningError struct {
	Index  int
	Method string
	code   string
	Cause  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("step %d (%s) failed [%s]: %v", e.Index, e.Method, e.code, e.Cause)
}

func (e *ProvisioningError) Code() string {
	return e.code
}

func (e *ProvisioningError) Unwrap() error {
	return e.Cause
}

func newProvisioningError(index int, step plan.Step, cause error) *ProvisioningError {
	method := "unknown"
	if step != nil {
		method = string(step.Method())
	}
	return &ProvisioningError{
		Index:  index,
		Method: method,
		code:   codeFor(step, cause),
		Cause:  cause,
	}
}

// codeFor prefers a code already carried by the cause.
func codeFor(step plan.Step, cause error) string {
	if code := perrors.Code(cause); code != "" {
		return code
	}
	switch step.(type) {
	case *plan.Shell:
		return perrors.CodeShellStepFailure
	case *plan.Copy:
		return perrors.CodeCopyFailure
	case *plan.Script:
		return perrors.CodeScriptDelegationFailure
	case *plan.Source:
		return perrors.CodeCloneFailure
	default:
		return perrors.CodeInvalidPlan
	}
}
