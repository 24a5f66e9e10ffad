package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

type exitCoder interface {
	ExitCode() int
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	code := exitFailure
	var ec exitCoder
	if errors.As(err, &ec) {
		code = ec.ExitCode()
	}
	if !errors.Is(err, context.Canceled) {
		msg := strings.Join(strings.Fields(err.Error()), " ")
		if msg != "" {
			fmt.Fprintln(stderr, msg)
		}
	}
	return code
}
