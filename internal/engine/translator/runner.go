package translator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command is one invocation of the external translation tool.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Stdin io.Reader
	// Stdout, when set, receives output as it is produced and Run returns
	// no captured output.
	Stdout io.Writer
}

func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	line := strings.Join(parts, " ")
	if c.Dir != "" {
		line = "cd " + c.Dir + " && " + line
	}
	return line
}

// Runner executes a Command and returns what it wrote to stdout.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands as local subprocesses.
type ExecRunner struct {
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin

	var stderr bytes.Buffer
	if r.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, r.Stderr)
	} else {
		cmd.Stderr = &stderr
	}

	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
		if err := cmd.Run(); err != nil {
			return nil, commandError(err, stderr.String())
		}
		return nil, nil
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, commandError(err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func commandError(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, stderr)
}
