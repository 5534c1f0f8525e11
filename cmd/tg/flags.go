package main

import (
	"time"

	"github.com/amonks/taskgraph/internal/validation"
	"github.com/amonks/taskgraph/schedule"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// dependencyTypeValue is a pflag.Value accepting FS, SS, FF, SF or their
// long names.
type dependencyTypeValue struct {
	value *schedule.DependencyType
}

var _ pflag.Value = dependencyTypeValue{}

func newDependencyTypeValue(def schedule.DependencyType, p *schedule.DependencyType) dependencyTypeValue {
	*p = def
	return dependencyTypeValue{value: p}
}

func (v dependencyTypeValue) String() string {
	if v.value == nil {
		return ""
	}
	return string(*v.value)
}

func (v dependencyTypeValue) Set(raw string) error {
	parsed, err := schedule.ParseDependencyType(raw)
	if err != nil {
		return err
	}
	*v.value = parsed
	return nil
}

func (v dependencyTypeValue) Type() string {
	return "type"
}

// dateValue is a pflag.Value holding an optional date. "none" and the empty
// string clear it.
type dateValue struct {
	value **time.Time
}

var _ pflag.Value = dateValue{}

func newDateValue(p **time.Time) dateValue {
	return dateValue{value: p}
}

func (v dateValue) String() string {
	if v.value == nil || *v.value == nil {
		return ""
	}
	return validation.FormatDate(*v.value)
}

func (v dateValue) Set(raw string) error {
	parsed, err := validation.ParseDate(raw)
	if err != nil {
		return err
	}
	*v.value = parsed
	return nil
}

func (v dateValue) Type() string {
	return "date"
}

func hasChangedFlags(cmd *cobra.Command, flags ...string) bool {
	for _, flag := range flags {
		if cmd.Flags().Changed(flag) {
			return true
		}
	}
	return false
}
