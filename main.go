package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jalert/compose"
	jerror "jalert/error"
	jlogger "jalert/logger"
	"jalert/service"
)

const usage = `Usage: jalert RULES [COMPOSE]

Follows the systemd journal and raises an alert for every entry matched by
the rules in RULES (JSON, TOML or YAML). COMPOSE is an optional
jalert-compose.yml describing the source, the exporters and the metrics
endpoint; without it alerts are shown as desktop notifications.

The fields an entry carries can be listed with:
	journalctl -o verbose
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		loger    jlogger.JalertLogger
		composer compose.ComposeFile
		svc      service.Service
		err      error
	)

	if len(args) < 1 || len(args) > 2 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 2 {
		composer, err = compose.NewComposeFile(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error while read compose file %v\n", err)
			return 1
		}
		// the rules on the command line win
		composer.GetRulesCompose().Path = args[0]
	} else {
		composer = compose.DefaultCompose(args[0])
	}

	logPath := composer.GetCompose().LogPath
	if logPath == "" {
		if logPath, err = os.Getwd(); err != nil {
			fmt.Fprintf(os.Stderr, "error while get working directory %v\n", err)
			return 1
		}
	}
	loger = jlogger.NewLogger(logPath, jlogger.WithStderr(), jlogger.WithLevel(composer.GetCompose().LogLevel))
	defer loger.Close()
	loger.PrintInfo("%s", composer.String())

	svc, err = service.NewService(composer.GetCompose(), loger)
	if err != nil {
		var configErr jerror.JalertConfigError
		if errors.As(err, &configErr) {
			loger.PrintError("invalid rules %s: %v", args[0], err)
		} else {
			loger.PrintError("error while construct service %v", err)
		}
		return 1
	}
	if err = svc.Start(); err != nil {
		loger.PrintError("error while start service %v", err)
		return 1
	}

	done := make(chan error, 1)
	go func() {
		done <- svc.Wait()
	}()

	code := 0
	select {
	case <-ctx.Done():
		loger.PrintInfo("Shutting down...")
	case err = <-done:
		if err != nil {
			loger.PrintError("journal source ended %v", err)
			code = 1
		}
	}
	if err = svc.Stop(); err != nil {
		loger.PrintError("error while stop service %v", err)
		code = 1
	}
	loger.PrintInfo("Service stopped")
	return code
}
