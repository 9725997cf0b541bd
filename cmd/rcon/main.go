// Command rcon is an interactive RCON console.
//
// It connects to a server, authorizes with the RCON password and then executes commands read from
// standard input until "quit" is entered. Settings come from an optional TOML file (-config), the
// RCON_HOST, RCON_PORT, RCON_PASSWORD and RCON_TIMEOUT environment variables, and flags, in
// increasing order of precedence. The password is prompted for when none is configured.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/schultz-is/rconsh"
	"github.com/schultz-is/rconsh/internal/config"
	"github.com/schultz-is/rconsh/internal/logging"
	"github.com/schultz-is/rconsh/internal/shell"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	var (
		configPath = flag.String("config", "", "Path to a TOML config file")
		host       = flag.String("host", "", "Sets the host to connect to (default \"localhost\")")
		port       = flag.String("port", "", "Sets the port to connect to (default 25575)")
		password   = flag.String("password", "", "The password of the RCON server; prompted for when empty")
		timeout    = flag.Duration("timeout", 0, "Limit on each exchange with the server (default 15s, negative disables)")
		prompt     = flag.Bool("prompt", false, "Prompt for the host and port")
		logPackets = flag.Bool("log-auth-packets", false, "Include the password in debug packet logs")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	logging.ConfigureFromEnv()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		logging.Errorf("%v", err)
		return 1
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			p, err := config.ParsePort(*port)
			if err != nil {
				logging.Warnf("invalid value for port, using %d instead", config.DefaultPort)
				p = config.DefaultPort
			}
			cfg.Port = p
		case "password":
			cfg.Password = *password
		case "timeout":
			cfg.Timeout = *timeout
		case "debug":
			cfg.Debug = *debug
		}
	})

	if cfg.Debug {
		logging.EnableDebug()
	}

	logging.Debugf("rcon %s", version)

	if *prompt {
		if err := promptAddress(&cfg); err != nil {
			logging.Errorf("%v", err)
			return 1
		}
	}

	if cfg.Password == "" {
		pw, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
		if err != nil {
			logging.Errorf("read password: %v", err)
			return 1
		}
		cfg.Password = pw
	}

	if err := cfg.Validate(); err != nil {
		logging.Errorf("%v", err)
		return 1
	}

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Connecting to %s...", cfg.Addr()))
	client, err := rcon.Connect(ctx, cfg.Host, cfg.Port, cfg.Password, rcon.ClientConfig{
		Timeout:                cfg.Timeout,
		Logger:                 logging.Slog(),
		LogOutboundAuthPackets: *logPackets,
	})
	if err != nil {
		msg := "Unable to connect. Shutting down."
		if errors.Is(err, rcon.ErrAuthenticationFailed) {
			msg = "Unable to connect. Did you enter your password correctly? Shutting down."
		}
		stopSpinner(spinner, false, msg)
		logging.Debugf("connect: %v", err)
		return 1
	}
	defer client.Close()
	stopSpinner(spinner, true, "Connected")

	done := make(chan error, 1)
	go func() {
		done <- shell.Run(ctx, os.Stdin, os.Stdout, client)
	}()

	select {
	case <-ctx.Done():
		pterm.Println()
		logging.Infof("interrupted, exiting")
		return 130
	case err := <-done:
		if err != nil {
			logging.Errorf("%v", err)
			return 1
		}
		return 0
	}
}

func promptAddress(cfg *config.Config) error {
	h, err := pterm.DefaultInteractiveTextInput.WithDefaultValue(cfg.Host).Show("Host")
	if err != nil {
		return fmt.Errorf("read host: %w", err)
	}
	if h != "" {
		cfg.Host = h
	}

	raw, err := pterm.DefaultInteractiveTextInput.WithDefaultValue(strconv.Itoa(cfg.Port)).Show("Port")
	if err != nil {
		return fmt.Errorf("read port: %w", err)
	}
	if raw != "" {
		p, err := config.ParsePort(raw)
		if err != nil {
			logging.Warnf("invalid value for port, using %d instead", cfg.Port)
			return nil
		}
		cfg.Port = p
	}
	return nil
}

func stopSpinner(s *pterm.SpinnerPrinter, ok bool, msg string) {
	if s == nil {
		if ok {
			pterm.Success.Println(msg)
		} else {
			pterm.Error.Println(msg)
		}
		return
	}
	if ok {
		s.Success(msg)
	} else {
		s.Fail(msg)
	}
}
