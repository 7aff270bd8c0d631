// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"

	"mvdan.cc/sh/v3/shell"
)

// ParseArgs splits a shell-escaped string into arguments, honoring quotes and
// escapes the way a POSIX shell would. Variables are expanded from the
// current environment.
func ParseArgs(s string) ([]string, error) {
	fields, err := shell.Fields(s, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid argument string %q: %w", s, err)
	}
	return fields, nil
}

// ParseArgsList applies ParseArgs to each value and concatenates the results.
// Values accumulate in order, as repeated --extra-vm-argument flags do.
func ParseArgsList(values []string) ([]string, error) {
	var out []string
	for _, v := range values {
		fields, err := ParseArgs(v)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}
