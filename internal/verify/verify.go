// SPDX-License-Identifier: MPL-2.0

package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/vgate/vgate/internal/runtime"
)

const (
	// Passed means the process exited cleanly and printed the success pattern.
	Passed Status = iota
	// Failed means the process timed out, exited non-zero, or did not print
	// the success pattern.
	Failed
)

const (
	// ReasonTimeout is reported when the process outlives its deadline.
	ReasonTimeout = "timeout"
	// ReasonNonzeroExit is reported when the process exits with a non-zero code.
	ReasonNonzeroExit = "nonzero exit"
	// ReasonPatternNotFound is reported when the process exits cleanly but its
	// output never matches the success pattern.
	ReasonPatternNotFound = "pattern not found"
	// ReasonEnvironment is reported when the runner cannot start the process.
	ReasonEnvironment = "environment"

	// DaCapoPattern matches the success line of a DaCapo benchmark run.
	DaCapoPattern = `^===== DaCapo 9\.12 ([a-zA-Z0-9_]+) PASSED in ([0-9]+) msec =====`
)

var (
	// ErrInvalidPattern is the sentinel error wrapped by InvalidPatternError.
	ErrInvalidPattern = errors.New("invalid success pattern")

	// DefaultCrashLog matches the absolute path of a HotSpot fatal error log.
	DefaultCrashLog = regexp.MustCompile(`(([A-Z]:|/).*[/\\]hs_err_pid[0-9]+\.log)`)
)

type (
	// Status is the verdict of one verification.
	Status int

	// Classification is the result of Verify.
	Classification struct {
		Status Status
		// Reason is empty for Passed.
		Reason   string
		ExitCode runtime.ExitCode
		// Output is the merged stdout and stderr of the process.
		Output string
		// CrashLogs lists crash log files found in the output.
		CrashLogs []string
	}

	// InvalidPatternError reports a success pattern that does not compile.
	InvalidPatternError struct {
		Pattern string
		Cause   error
	}

	// Verifier runs processes through Runner and classifies them.
	Verifier struct {
		Runner runtime.Runner
		// Logger receives the process output at debug level and salvaged crash
		// logs at error level.
		Logger *log.Logger
		// CrashLog overrides DefaultCrashLog.
		CrashLog *regexp.Regexp
	}

	// lineLogger logs every complete line written to it.
	lineLogger struct {
		logger *log.Logger
		buf    bytes.Buffer
	}
)

func (s Status) String() string {
	if s == Passed {
		return "passed"
	}
	return "failed"
}

// Passed reports whether the verification succeeded.
func (c Classification) Passed() bool { return c.Status == Passed }

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid success pattern %q: %v", e.Pattern, e.Cause)
}

// Unwrap returns ErrInvalidPattern so callers can use errors.Is for programmatic detection.
func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }

// CompilePattern compiles a success pattern in multi-line mode, so ^ and $
// match at line boundaries.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Cause: err}
	}
	return re, nil
}

// Verify runs cmd and classifies the outcome. Checks apply in order: timeout,
// non-zero exit, missing success pattern. An empty pattern only checks the
// exit status. Crash logs referenced in the output are salvaged on every
// path.
func (v *Verifier) Verify(ctx context.Context, cmd runtime.Command, pattern string) (c Classification, err error) {
	var re *regexp.Regexp
	if pattern != "" {
		if re, err = CompilePattern(pattern); err != nil {
			return Classification{Status: Failed, Reason: err.Error()}, err
		}
	}

	logger := v.logger()
	lines := &lineLogger{logger: logger}
	if cmd.Output != nil {
		cmd.Output = io.MultiWriter(cmd.Output, lines)
	} else {
		cmd.Output = lines
	}

	logger.Debug("running", "command", cmd.String())
	res := v.Runner.Run(ctx, &cmd)
	lines.flush()

	c = Classification{Status: Failed, ExitCode: res.ExitCode, Output: res.Output}
	defer func() {
		c.CrashLogs = v.salvage(logger, c.Output)
	}()

	switch {
	case res.TimedOut:
		c.Reason = ReasonTimeout
	case res.Error != nil:
		c.Reason = ReasonEnvironment
		return c, res.Error
	case !res.ExitCode.IsSuccess():
		c.Reason = ReasonNonzeroExit
	case re != nil && !re.MatchString(res.Output):
		c.Reason = ReasonPatternNotFound
	default:
		c.Status = Passed
	}
	return c, nil
}

// salvage logs and removes every crash log named in output.
func (v *Verifier) salvage(logger *log.Logger, output string) []string {
	re := v.CrashLog
	if re == nil {
		re = DefaultCrashLog
	}
	var found []string
	seen := map[string]bool{}
	for _, path := range re.FindAllString(output, -1) {
		path = strings.TrimSpace(path)
		if seen[path] {
			continue
		}
		seen[path] = true
		found = append(found, path)

		content, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("crash log not found", "path", path)
			} else {
				logger.Warn("crash log unreadable", "path", path, "error", err)
			}
			continue
		}
		logger.Error("process crashed", "path", path)
		logger.Print(string(content))
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove crash log", "path", path, "error", err)
		}
	}
	return found
}

func (v *Verifier) logger() *log.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return log.Default().WithPrefix("verify")
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			l.buf.Reset()
			l.buf.WriteString(line)
			return len(p), nil
		}
		l.logger.Debug(strings.TrimRight(line, "\r\n"))
	}
}

func (l *lineLogger) flush() {
	if l.buf.Len() > 0 {
		l.logger.Debug(l.buf.String())
		l.buf.Reset()
	}
}
