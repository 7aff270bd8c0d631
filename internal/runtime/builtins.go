// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/u-root/u-root/pkg/core"
	"github.com/u-root/u-root/pkg/core/base64"
	"github.com/u-root/u-root/pkg/core/cat"
	"github.com/u-root/u-root/pkg/core/chmod"
	"github.com/u-root/u-root/pkg/core/cp"
	"github.com/u-root/u-root/pkg/core/find"
	"github.com/u-root/u-root/pkg/core/gzip"
	"github.com/u-root/u-root/pkg/core/ls"
	"github.com/u-root/u-root/pkg/core/mkdir"
	"github.com/u-root/u-root/pkg/core/mktemp"
	"github.com/u-root/u-root/pkg/core/mv"
	"github.com/u-root/u-root/pkg/core/rm"
	"github.com/u-root/u-root/pkg/core/shasum"
	"github.com/u-root/u-root/pkg/core/tar"
	"github.com/u-root/u-root/pkg/core/touch"
	"mvdan.cc/sh/v3/interp"
)

// builtin creates a fresh u-root command. keepName is set for commands that
// expect the program name as their first argument.
type builtin struct {
	create   func() core.Command
	keepName bool
}

// builtins are the file utilities script tasks can rely on regardless of the
// host. Anything else falls through to the host PATH.
var builtins = map[string]builtin{
	"base64": {create: func() core.Command { return base64.New() }},
	"cat":    {create: func() core.Command { return cat.New() }},
	"chmod":  {create: func() core.Command { return chmod.New() }},
	"cp":     {create: func() core.Command { return cp.New() }},
	"find":   {create: func() core.Command { return find.New() }},
	"gzip":   {create: func() core.Command { return gzip.New() }, keepName: true},
	"ls":     {create: func() core.Command { return ls.New() }},
	"mkdir":  {create: func() core.Command { return mkdir.New() }},
	"mktemp": {create: func() core.Command { return mktemp.New() }},
	"mv":     {create: func() core.Command { return mv.New() }},
	"rm":     {create: func() core.Command { return rm.New() }},
	"shasum": {create: func() core.Command { return shasum.New() }},
	"tar":    {create: func() core.Command { return tar.New() }},
	"touch":  {create: func() core.Command { return touch.New() }},
}

// BuiltinNames returns the utilities VirtualRunner provides in-process,
// sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// execBuiltins runs builtin utilities in-process. A builtin that fails does
// not fall back to the host binary.
func execBuiltins(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return next(ctx, args)
		}
		b, ok := builtins[args[0]]
		if !ok {
			return next(ctx, args)
		}

		hc := interp.HandlerCtx(ctx)
		cmd := b.create()
		cmd.SetIO(hc.Stdin, hc.Stdout, hc.Stderr)
		cmd.SetWorkingDir(hc.Dir)
		cmd.SetLookupEnv(func(name string) (string, bool) {
			v := hc.Env.Get(name)
			return v.Str, v.Set
		})

		cmdArgs := args[1:]
		if b.keepName {
			cmdArgs = args
		}
		if err := cmd.RunContext(ctx, cmdArgs...); err != nil {
			fmt.Fprintf(hc.Stderr, "%s: %v\n", args[0], err)
			return interp.ExitStatus(1)
		}
		return nil
	}
}
