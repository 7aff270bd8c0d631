// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"fmt"
	"strings"
)

const versionMarker = "-version"

type (
	// directive locates a path-valued option within an argument vector.
	directive struct {
		// index of the argument holding the option name.
		index int
		// valueIndex is the argument holding the value. It equals index for
		// the "--opt=value" form.
		valueIndex int
		// prefix is prepended to the value when it is written back.
		prefix string
		value  string
	}

	// directiveSpec describes the spellings of one path-valued option.
	directiveSpec struct {
		name      string
		separate  []string
		joined    []string
		canonical string
	}
)

var (
	classPathSpec = directiveSpec{
		name:     "class path",
		separate: []string{"-cp", "-classpath", "--class-path"},
		joined:   []string{"--class-path="},
	}
	modulePathSpec = directiveSpec{
		name:      "module path",
		separate:  []string{"-p", "--module-path"},
		joined:    []string{"--module-path="},
		canonical: "--module-path=",
	}
	upgradeModulePathSpec = directiveSpec{
		name:      "upgrade module path",
		separate:  []string{"--upgrade-module-path"},
		joined:    []string{"--upgrade-module-path="},
		canonical: "--upgrade-module-path=",
	}

	// valueOptions take their value from the next argument.
	valueOptions = map[string]bool{
		"-cp": true, "-classpath": true, "--class-path": true,
		"-p": true, "--module-path": true, "--upgrade-module-path": true,
		"--add-modules": true, "--add-exports": true, "--add-opens": true,
		"--add-reads": true, "--patch-module": true, "--limit-modules": true,
	}

	// mainSelectors end the runtime options; what follows belongs to the program.
	mainSelectors = map[string]bool{"-jar": true, "-m": true, "--module": true}
)

// optionsEnd returns the index of the first argument that is not a runtime
// option. Arguments from that index on belong to the launched program.
func optionsEnd(args []string) int {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case mainSelectors[arg]:
			return i
		case valueOptions[arg]:
			i++
		case !strings.HasPrefix(arg, "-"):
			return i
		}
	}
	return len(args)
}

// findDirective locates the single occurrence of spec within the runtime
// options of args. A second occurrence or a missing value is a
// ConfigurationError.
func findDirective(args []string, spec directiveSpec) (*directive, error) {
	var found *directive
	end := optionsEnd(args)
	for i := 0; i < end; i++ {
		d, err := matchDirective(args, i, spec)
		if err != nil {
			return nil, err
		}
		if d == nil {
			continue
		}
		if found != nil {
			return nil, &ConfigurationError{
				Arg:    args[i],
				Reason: fmt.Sprintf("duplicate %s directive (first given as %q)", spec.name, args[found.index]),
			}
		}
		found = d
		i = d.valueIndex
	}
	return found, nil
}

func matchDirective(args []string, i int, spec directiveSpec) (*directive, error) {
	arg := args[i]
	for _, name := range spec.separate {
		if arg != name {
			continue
		}
		if i+1 >= len(args) {
			return nil, &ConfigurationError{Arg: arg, Reason: "missing " + spec.name + " value"}
		}
		return &directive{index: i, valueIndex: i + 1, value: args[i+1]}, nil
	}
	for _, prefix := range spec.joined {
		if value, ok := strings.CutPrefix(arg, prefix); ok {
			return &directive{index: i, valueIndex: i, prefix: prefix, value: value}, nil
		}
	}
	return nil, nil
}

// set writes value back into args at the directive's position.
func (d *directive) set(args []string, value string) {
	args[d.valueIndex] = d.prefix + value
}

// XXOption returns the effective value of the -XX option name in args. Boolean
// options yield "true" or "false"; valued options yield their value. The last
// occurrence wins and def is returned when the option is absent.
func XXOption(args []string, name, def string) string {
	value := def
	for _, arg := range args {
		rest, ok := strings.CutPrefix(arg, "-XX:")
		if !ok {
			continue
		}
		switch {
		case rest == "+"+name:
			value = "true"
		case rest == "-"+name:
			value = "false"
		default:
			if v, ok := strings.CutPrefix(rest, name+"="); ok {
				value = v
			}
		}
	}
	return value
}

// XXFlag reports whether the boolean -XX option name is enabled in args.
func XXFlag(args []string, name string, def bool) bool {
	d := "false"
	if def {
		d = "true"
	}
	return XXOption(args, name, d) == "true"
}

// checkArgs returns warnings for argument combinations the runtime accepts
// but that do not do what the caller probably intended.
func checkArgs(args []string) []string {
	var warnings []string
	end := optionsEnd(args)
	for i := 0; i < end; i++ {
		if args[i] != versionMarker {
			continue
		}
		if ignored := args[i+1:]; len(ignored) > 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring arguments after %s: %s", versionMarker, strings.Join(ignored, " ")))
		}
		break
	}
	if XXFlag(args, "BootstrapJVMCI", false) && !XXFlag(args, "UseJVMCICompiler", false) {
		warnings = append(warnings, "-XX:+BootstrapJVMCI is ignored because -XX:+UseJVMCICompiler is not enabled")
	}
	return warnings
}
