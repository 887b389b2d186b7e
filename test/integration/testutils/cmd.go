package testutils

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
)

// Deploywatch runs a deploywatch binary the way a CI job would: configured
// through DEPLOYWATCH_* env vars on top of the caller environment.
type Deploywatch struct {
	Binary string
	// BackendURL is exported as DEPLOYWATCH_BACKEND_URL, empty uses the demo backend.
	BackendURL string
	// Env entries are appended last and win over any other value.
	Env []string
	// Quiet disables the logger so stderr only has command errors.
	Quiet bool
}

// Run executes the command line, arguments are split on whitespace.
func (d Deploywatch) Run(ctx context.Context, cmdLine string) (stdout, stderr []byte, err error) {
	return d.RunArgs(ctx, strings.Fields(cmdLine)...)
}

// RunArgs executes the binary with already split arguments.
func (d Deploywatch) RunArgs(ctx context.Context, args ...string) (stdout, stderr []byte, err error) {
	var outData, errData bytes.Buffer
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	cmd.Stdout = &outData
	cmd.Stderr = &errData
	cmd.Env = d.environ()

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}

func (d Deploywatch) environ() []string {
	env := append([]string{}, os.Environ()...)
	if d.BackendURL != "" {
		env = append(env, "DEPLOYWATCH_BACKEND_URL="+d.BackendURL)
	}
	if d.Quiet {
		env = append(env, "DEPLOYWATCH_NO_LOG=true")
	}
	return append(env, d.Env...)
}
