package config

import "cogentcore.org/core/cli"

// File is the settings file both commands read from the working directory.
const File = "oxy.toml"

// CLIOptions returns the command-line options shared by the commands. The
// config passed to cli.Run is filled from DefaultConfig, then from File when
// it exists, then from flags. Fields tagged `flag:` take the short names
// listed there.
//
// Parameters:
//   - name: the command name
//   - about: one-line description shown in -help
//
// Returns:
//   - *cli.Options: the options to pass to cli.Run
func CLIOptions(name, about string) *cli.Options {
	opts := cli.DefaultOptions(name, about)
	opts.DefaultFiles = []string{File}
	return opts
}
