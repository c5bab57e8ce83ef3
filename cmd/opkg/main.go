// Command opkg installs and manages AI assistant configuration packages
// across editor-specific target platforms.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/opkgdev/opkg/internal/cmdroot"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(cmdroot.Execute(ctx))
}
