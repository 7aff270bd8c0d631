// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	ToolNotFoundId
	InvalidLaunchArgsId
	DependencyCycleId
	PackagingFailedId
	GateFailedId
	NoTasksMatchedId
	DestinationExistsId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown using the glamour style at
// stylePath ("dark", "light", "auto" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md += "\n- <" + string(link) + ">"
		}
	}
	return render(md, stylePath)
}

const docBase = "https://github.com/vgate/vgate/blob/main/docs/"

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id:       ConfigLoadFailedId,
		docLinks: []HttpLink{docBase + "configuration.md"},
		mdMsg: `
# Failed to load the configuration

The configuration file could not be read or does not match the schema.

## Lookup order
1. The file given with ` + "`--config`" + `
2. ` + "`$XDG_CONFIG_HOME/vgate/config.cue`" + `
3. ` + "`./vgate.cue`" + `

## Things you can try
- Check the field path in the error message above
- Print the effective configuration:
~~~
$ vgate config show
~~~
- Start over from the defaults:
~~~
$ vgate config init
~~~`,
	}

	toolNotFoundIssue = &Issue{
		id:       ToolNotFoundId,
		docLinks: []HttpLink{docBase + "gate.md#prerequisites"},
		mdMsg: `
# Required tool not found

A task needs an executable that is not on ` + "`PATH`" + `. The failing task is
reported as an environment failure, not a test failure.

## Things you can try
- Install the tool, or point ` + "`gate.java`" + ` at the runtime launcher
- Re-run the single task:
~~~
$ vgate gate --tags <tag-of-the-task>
~~~`,
	}

	invalidLaunchArgsIssue = &Issue{
		id:       InvalidLaunchArgsId,
		docLinks: []HttpLink{docBase + "launch.md"},
		mdMsg: `
# Invalid launch arguments

The runtime arguments could not be combined with the deployed artifacts.

## Common causes
- A class path or module path option is given twice
- ` + "`--module-path`" + ` or ` + "`-cp`" + ` is missing its value

## Things you can try
- Inspect the assembled command line without running it:
~~~
$ vgate launch -- <args>
~~~`,
	}

	dependencyCycleIssue = &Issue{
		id:       DependencyCycleId,
		docLinks: []HttpLink{docBase + "configuration.md#artifacts"},
		mdMsg: `
# Artifact dependency cycle

The ` + "`requires`" + ` lists of the configured artifacts form a cycle, or name
an artifact that is not declared. Artifacts are placed on the class path in
dependency order, so the cycle must be broken.`,
	}

	packagingFailedIssue = &Issue{
		id:       PackagingFailedId,
		docLinks: []HttpLink{docBase + "packaging.md"},
		mdMsg: `
# Packaging failed

The archive was not written. Common causes:
- A service registration file is not valid UTF-8
- Two inputs map to the same entry name
- An exclude pattern is not a valid glob

The partially written archive has been removed.`,
	}

	gateFailedIssue = &Issue{
		id:       GateFailedId,
		docLinks: []HttpLink{docBase + "gate.md"},
		mdMsg: `
# The gate failed

One or more selected tasks failed. The report above lists every task with its
status and reason.

## Things you can try
- Re-run only the failing group:
~~~
$ vgate gate --tags <tag>
~~~
- Stop at the first failure while iterating:
~~~
$ vgate gate --fail-fast
~~~
- Keep a machine-readable record:
~~~
$ vgate gate --report-file gate.toml
~~~`,
	}

	noTasksMatchedIssue = &Issue{
		id:       NoTasksMatchedId,
		docLinks: []HttpLink{docBase + "gate.md#tags"},
		mdMsg: `
# No tasks matched

The tag filter selected nothing. A task runs when it carries at least one of
the requested tags. List every task without running any:
~~~
$ vgate gate --dry-run
~~~`,
	}

	destinationExistsIssue = &Issue{
		id:       DestinationExistsId,
		docLinks: []HttpLink{docBase + "image.md"},
		mdMsg: `
# Image destination exists

The runtime image is never assembled over an existing directory. Remove it or
pass ` + "`--force`" + ` to replace it.`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		toolNotFoundIssue.Id():      toolNotFoundIssue,
		invalidLaunchArgsIssue.Id(): invalidLaunchArgsIssue,
		dependencyCycleIssue.Id():   dependencyCycleIssue,
		packagingFailedIssue.Id():   packagingFailedIssue,
		gateFailedIssue.Id():        gateFailedIssue,
		noTasksMatchedIssue.Id():    noTasksMatchedIssue,
		destinationExistsIssue.Id(): destinationExistsIssue,
	}
)

// Values returns every catalog entry ordered by ID.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id - b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
