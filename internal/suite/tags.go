// SPDX-License-Identifier: MPL-2.0

package suite

import "slices"

// Standard tag groups. A task tagged with a group name carries every tag of
// the group, so selecting "fulltest" also selects bootstrap and test tasks.
var (
	TagsBootstrap           = []string{"bootstrap", "fulltest"}
	TagsBootstrapLite       = []string{"bootstraplite", "bootstrap", "fulltest"}
	TagsBootstrapFullVerify = []string{"bootstrapfullverify", "fulltest"}
	TagsTest                = []string{"test", "fulltest"}
	TagsBenchmarkTest       = []string{"benchmarktest", "fulltest"}
	TagsCTW                 = []string{"ctw", "fulltest"}
	TagsDoc                 = []string{"javadoc"}
)

var groups = map[string][]string{
	"bootstrap":           TagsBootstrap,
	"bootstraplite":       TagsBootstrapLite,
	"bootstrapfullverify": TagsBootstrapFullVerify,
	"test":                TagsTest,
	"benchmarktest":       TagsBenchmarkTest,
	"ctw":                 TagsCTW,
	"doc":                 TagsDoc,
}

// ExpandTags replaces group names with the tags of the group, keeping the
// first occurrence of each tag.
func ExpandTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		members, ok := groups[tag]
		if !ok {
			members = []string{tag}
		}
		for _, m := range members {
			if !slices.Contains(out, m) {
				out = append(out, m)
			}
		}
	}
	return out
}
