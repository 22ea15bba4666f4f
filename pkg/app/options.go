package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by the option set of a command.
type NamedFlagSetOptions interface {
	// Flags returns the command's flags grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in fields that depend on other fields.
	Complete() error

	// Validate checks the options after flags, environment and config file
	// have been applied.
	Validate() error
}
