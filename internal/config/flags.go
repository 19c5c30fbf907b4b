package config

import (
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// Flags defines the CLI flags supported by icinga-filter.
type Flags struct {
	// Version decides whether to just print the version and exit.
	Version bool `long:"version" description:"print version and exit"`
	// Config is the path to the config file. Without one, defaults and environment apply.
	Config         string   `short:"c" long:"config" description:"path to config file"`
	Expressions    []string `short:"e" long:"expression" value-name:"QUERY" description:"filter query like person[name]=jo&active=true, may be repeated"`
	ExpressionFile string   `long:"expression-file" value-name:"FILE" description:"YAML or JSON file holding a filter expression"`
	Strict         bool     `long:"strict" description:"compare values strictly instead of by case-insensitive substring"`
	Any            bool     `long:"any" description:"print items matching any instead of all expressions"`
	Invert         bool     `short:"v" long:"invert" description:"print items not matching"`
	Format         string   `short:"f" long:"format" value-name:"FORMAT" description:"output format, yaml or json"`

	Args struct {
		Input string `positional-arg-name:"FILE" description:"YAML or JSON file holding the items, defaults to stdin"`
	} `positional-args:"yes"`
}

// ParseFlags parses the given command line arguments, excluding the program name.
//
// Asking for help results in an error of type *flags.Error with flags.ErrHelp, after the usage was
// printed to stdout.
func ParseFlags(args []string) (*Flags, error) {
	f := new(Flags)
	parser := flags.NewParser(f, flags.Default)

	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if len(rest) > 0 {
		return nil, errors.Errorf("unexpected arguments: %q", rest)
	}

	return f, nil
}

// IsHelp reports whether err was returned by ParseFlags because help was requested.
func IsHelp(err error) bool {
	var flagsErr *flags.Error

	return errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp
}

// Apply lets the flags override the configuration.
func (f *Flags) Apply(c *ConfigFile) error {
	if f.Strict {
		c.Comparator = "strict"
	}
	if f.Format != "" {
		c.Format = f.Format
	}

	return c.Validate()
}
