// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadEnvFiles reads dotenv files in order and returns the merged variables.
// Relative paths resolve against baseDir. A trailing '?' marks a file as
// optional: it is skipped when missing. Later files override earlier ones.
func LoadEnvFiles(baseDir string, paths []string) (map[string]string, error) {
	env := make(map[string]string)
	for _, p := range paths {
		optional := strings.HasSuffix(p, "?")
		p = strings.TrimSuffix(p, "?")
		full := filepath.FromSlash(p)
		if !filepath.IsAbs(full) {
			full = filepath.Join(baseDir, full)
		}
		content, err := os.ReadFile(full)
		if err != nil {
			if optional && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file %q: %w", p, err)
		}
		if err := ParseEnv(env, content, p); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// ParseEnv parses dotenv content into env.
//
//	# comment
//	KEY=value          unquoted; " #" starts a trailing comment
//	export KEY=value   the export prefix is ignored
//	KEY="a\tb"         escapes \n \r \t \\ \" \$
//	KEY='raw'          literal
func ParseEnv(env map[string]string, content []byte, filename string) error {
	for i, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, raw, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		switch {
		case !ok:
			return fmt.Errorf("%s:%d: invalid format (missing '=')", filename, i+1)
		case key == "":
			return fmt.Errorf("%s:%d: empty variable name", filename, i+1)
		}

		value, err := envValue(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s:%d: %w", filename, i+1, err)
		}
		env[key] = value
	}
	return nil
}

func envValue(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	switch v[0] {
	case '\'':
		if len(v) < 2 || v[len(v)-1] != '\'' {
			return "", errors.New("unterminated single quote")
		}
		return v[1 : len(v)-1], nil
	case '"':
		if len(v) < 2 || v[len(v)-1] != '"' {
			return "", errors.New("unterminated double quote")
		}
		return unescape(v[1 : len(v)-1]), nil
	}
	if idx := strings.Index(v, " #"); idx >= 0 {
		v = strings.TrimSpace(v[:idx])
	}
	return v, nil
}

var envEscapes = strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t", `\\`, `\`, `\"`, `"`, `\$`, "$")

func unescape(s string) string { return envEscapes.Replace(s) }
