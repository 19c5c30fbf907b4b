package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/icinga/icinga-filter/internal"
	"github.com/icinga/icinga-filter/internal/config"
	"github.com/icinga/icinga-filter/internal/document"
	"github.com/icinga/icinga-filter/internal/filter"
	"github.com/icinga/icinga-filter/internal/utils"
	"github.com/icinga/icingadb/pkg/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			os.Exit(ExitSuccess)
		}

		// go-flags already printed the error.
		os.Exit(ExitFailure)
	}

	if flags.Version {
		fmt.Println("Icinga Filter version:", internal.Version.Version)
		fmt.Println()

		fmt.Println("Build information:")
		fmt.Printf("  Go version: %s (%s, %s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if internal.Version.Commit != "" {
			fmt.Println("  Git commit:", internal.Version.Commit)
		}
		os.Exit(ExitSuccess)
	}

	conf, err := config.FromYAMLFile(flags.Config, os.Environ())
	if err != nil {
		utils.PrintErrorThenExit(err, ExitFailure)
	}
	if err := flags.Apply(conf); err != nil {
		utils.PrintErrorThenExit(err, ExitFailure)
	}

	logs, err := logging.NewLogging(
		"icinga-filter",
		conf.Logging.Level,
		conf.Logging.Output,
		conf.Logging.Options,
		conf.Logging.Interval,
	)
	if err != nil {
		utils.PrintErrorThenExit(errors.Wrap(err, "can't initialize logging"), ExitFailure)
	}

	logger := logs.GetLogger()
	defer func() { _ = logger.Sync() }()

	input := os.Stdin
	if flags.Args.Input != "" {
		f, err := os.Open(flags.Args.Input)
		if err != nil {
			utils.PrintErrorThenExit(errors.Wrap(err, "can't open items"), ExitFailure)
		}
		defer func() { _ = f.Close() }()

		input = f
	}

	filterLogger := logs.GetChildLogger("filter").SugaredLogger
	if err := run(flags, conf, input, os.Stdout, filterLogger); err != nil {
		logger.Debugw("Filtering failed", zap.Error(err))
		_ = logger.Sync()
		utils.PrintErrorThenExit(err, ExitFailure)
	}
}

// run filters the items read from in according to flags and conf and writes the matching ones to out.
func run(flags *config.Flags, conf *config.ConfigFile, in io.Reader, out io.Writer, logger *zap.SugaredLogger) error {
	format, err := document.ParseFormat(conf.Format)
	if err != nil {
		return err
	}

	rule, err := buildRule(flags, conf, logger)
	if err != nil {
		return err
	}

	items, err := document.DecodeItems(in)
	if err != nil {
		return err
	}

	matched, err := filter.ApplyRule(items, rule)
	if err != nil {
		return errors.Wrap(err, "can't filter items")
	}

	logger.Debugw("Finished filtering", zap.Int("items", len(items)), zap.Int("matched", len(matched)))

	return document.Encode(out, matched, format)
}

// buildRule compiles all expressions given by flags into a single rule.
//
// The expressions are combined by All, or by Any if requested, and the result is inverted by None.
func buildRule(flags *config.Flags, conf *config.ConfigFile, logger *zap.SugaredLogger) (filter.Rule, error) {
	opts, err := conf.FilterOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, filter.WithLogger(logger))

	op := filter.All
	if flags.Any {
		op = filter.Any
	}

	chain, err := filter.NewChain(op)
	if err != nil {
		return nil, err
	}

	parser := filter.NewParser(conf.Wildcard)
	for _, query := range flags.Expressions {
		expr, err := parser.Parse(query)
		if err != nil {
			return nil, err
		}

		chain.Add(filter.New(expr, opts...))
	}

	if flags.ExpressionFile != "" {
		expr, err := readExpressionFile(flags.ExpressionFile)
		if err != nil {
			return nil, err
		}

		chain.Add(filter.New(expr, opts...))
	}

	if !flags.Invert {
		return chain, nil
	}

	inverted, err := filter.NewChain(filter.None, chain)
	if err != nil {
		return nil, err
	}

	return inverted, nil
}

func readExpressionFile(path string) (filter.Expression, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't open expression file")
	}
	defer func() { _ = f.Close() }()

	return document.DecodeExpression(f)
}
