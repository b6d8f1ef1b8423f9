// Package scriptexec runs a BPMN script-task's Python source as a
// subprocess, satisfying pkg/resolver.ScriptExecutor.
package scriptexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/codeready-toolchain/bpmflow/pkg/resolver"
)

// Runner executes script-task code via a configurable interpreter
// binary (python3 by default).
type Runner struct {
	// Interpreter is the binary invoked with the script's temp file
	// path as its only argument. Defaults to "python3".
	Interpreter string
}

// New returns a Runner using python3.
func New() *Runner {
	return &Runner{Interpreter: "python3"}
}

var _ resolver.ScriptExecutor = (*Runner)(nil)

// Execute writes code to a temp file and runs it with env merged on top
// of the process's own environment, mirroring the source system's
// execute_python_code: the process's environment plus the instance's
// variables_data, never a variables-only sandbox.
func (r *Runner) Execute(ctx context.Context, code string, env map[string]string) (resolver.ScriptResult, error) {
	interpreter := r.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}

	tmp, err := os.CreateTemp("", "bpmflow-script-*.py")
	if err != nil {
		return resolver.ScriptResult{}, fmt.Errorf("scriptexec: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return resolver.ScriptResult{}, fmt.Errorf("scriptexec: write script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return resolver.ScriptResult{}, fmt.Errorf("scriptexec: close script file: %w", err)
	}

	cmd := exec.CommandContext(ctx, interpreter, tmp.Name())
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := resolver.ScriptResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if runErr != nil {
		return result, fmt.Errorf("scriptexec: run script: %w", runErr)
	}
	return result, nil
}
