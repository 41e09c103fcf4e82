package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Output formats shared by the listing commands.
var outputFormats = []string{"table", "json", "yaml"}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	OutputFormat string `flag:"output,o" desc:"Output format (table|json|yaml)" default:"table"`
	Verbose      bool   `flag:"verbose,v" desc:"Enable verbose output" default:"false"`
	Quiet        bool   `flag:"quiet,q" desc:"Suppress output" default:"false"`
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "output":
			cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table|json|yaml)")
			AddFlagValidation(cmd.Flags(), "output", func(format string) error {
				return ValidateFormatWithSuggestion(format, outputFormats)
			})
		case "verbosity":
			cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
			cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
		}
	}

	return flags
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.OutputFormat != "" {
		if err := ValidateFormatWithSuggestion(f.OutputFormat, outputFormats); err != nil {
			return err
		}
	}

	if f.Quiet && f.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}

	return nil
}

// Format returns the normalized output format.
func (f *StandardFlags) Format() string {
	return strings.ToLower(f.OutputFormat)
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(fs *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := fs.Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateFormatWithSuggestion checks format against the supported ones,
// ignoring case.
func ValidateFormatWithSuggestion(format string, valid []string) error {
	lower := strings.ToLower(format)
	for _, v := range valid {
		if lower == v {
			return nil
		}
	}

	for _, v := range valid {
		if strings.HasPrefix(v, lower) && lower != "" {
			return fmt.Errorf("invalid format %q, did you mean %q?", format, v)
		}
	}
	return fmt.Errorf("invalid format %q, must be one of: %s", format, strings.Join(valid, ", "))
}

// ValidatePositiveInt accepts integers of at least 1.
func ValidatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid number: %s", s)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

// ValidateFileExists checks an optional file argument.
func ValidateFileExists(filename string) error {
	if filename == "" {
		return nil
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	}

	return nil
}
