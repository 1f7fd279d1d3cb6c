// Package cmd implements dyn's diagnostic CLI.
package cmd

import (
	"errors"
	"fmt"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/dyn"
	"go.followtheprocess.codes/dyn/internal/carrier"
	"go.followtheprocess.codes/msg"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

// Build returns the root dyn CLI command.
func Build() (*cli.Command, error) {
	return cli.New(
		"dyn",
		cli.Short("Inspect dyn's scope propagation backend"),
		cli.Allow(cli.NoArgs()),
		cli.Version(version),
		cli.Commit(commit),
		cli.BuildDate(date),
		cli.Run(func(cmd *cli.Command, args []string) error {
			fmt.Fprintf(cmd.Stdout(), "backend: %s\n", dyn.Backend())
			return nil
		}),
		cli.SubCommands(backend, check),
	)
}

// backend returns the backend subcommand.
func backend() (*cli.Command, error) {
	return cli.New(
		"backend",
		cli.Short("Report backend selection and its inputs"),
		cli.Allow(cli.NoArgs()),
		cli.Run(func(cmd *cli.Command, args []string) error {
			info := carrier.Detect()

			override := info.Override
			if override == "" {
				override = "(unset)"
			}

			fmt.Fprintf(cmd.Stdout(), "selected:         %s\n", dyn.Backend())
			fmt.Fprintf(cmd.Stdout(), "would select:     %s\n", info.Backend)
			fmt.Fprintf(cmd.Stdout(), "%s:      %s\n", carrier.EnvBackend, override)
			fmt.Fprintf(cmd.Stdout(), "labels supported: %t\n", info.LabelsSupported)
			return nil
		}),
	)
}

// check returns the check subcommand.
func check() (*cli.Command, error) {
	return cli.New(
		"check",
		cli.Short("Run a live bind/read/restore round trip on the selected backend"),
		cli.Allow(cli.NoArgs()),
		cli.Run(func(cmd *cli.Command, args []string) error {
			if err := roundTrip(); err != nil {
				return err
			}

			msg.Fsuccess(cmd.Stdout(), "backend %s passed the round trip", dyn.Backend())
			return nil
		}),
	)
}

// roundTrip binds a fresh variable for one extent, reads it back inside, and
// confirms nothing survives outside.
func roundTrip() error {
	user := dyn.Declare[string]("dyn.check.user")
	before := dyn.Current()

	err := dyn.Let(func() error {
		got, err := user.Get()
		if err != nil {
			return fmt.Errorf("read back inside the extent: %w", err)
		}

		if got != "roundtrip" {
			return fmt.Errorf("read %q inside the extent, bound %q", got, "roundtrip")
		}

		return nil
	}, user.To("roundtrip"))
	if err != nil {
		return err
	}

	if dyn.Current() != before {
		return errors.New("prior scope not reinstated after the extent")
	}

	if _, err := user.Get(); err == nil {
		return errors.New("binding survived past its extent")
	}

	return nil
}
