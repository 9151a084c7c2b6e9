package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"litvi-store/internal/cli"
)

const usage = `storecli - storefront account tool

Usage:
  storecli [-server URL] <command>

Commands:
  register      create an account, triggers a verification OTP mail
  verify        confirm the registration OTP
  login         obtain a session token
  forgot        request a password-reset OTP
  verify-reset  confirm the reset OTP
  reset         set a new password
`

func main() {
	server := flag.String("server", "http://localhost:8080", "backend base URL")
	stateFile := flag.String("state", cli.DefaultStatePath(), "session state file")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(cli.NewClient(*server), *stateFile, os.Stdin, os.Stdout)

	var err error
	switch flag.Arg(0) {
	case "register":
		err = app.Register(ctx)
	case "verify":
		err = app.Verify(ctx)
	case "login":
		err = app.Login(ctx)
	case "forgot":
		err = app.Forgot(ctx)
	case "verify-reset":
		err = app.VerifyReset(ctx)
	case "reset":
		err = app.Reset(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
