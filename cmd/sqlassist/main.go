package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sqlassist/sqlassist/internal/cli/sqlassist"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := sqlassist.Run(ctx, os.Args[1:], sqlassist.Options{
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Interactive: stdinIsTerminal(),
	})
	stop()
	os.Exit(code)
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
