// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/maps"

	"github.com/vgate/vgate/internal/archive"
)

const (
	// DefaultOptionDescriptorsService is the service implicitly provided by
	// every generated option descriptor class.
	DefaultOptionDescriptorsService = "org.graalvm.compiler.options.OptionDescriptors"

	optionDescriptorsSuffix = "_OptionDescriptors.class"
)

var (
	// ErrPackaging is the sentinel error wrapped by PackagingError.
	ErrPackaging = archive.ErrPackaging
	// ErrClosed is returned when an Aggregator is closed twice.
	ErrClosed = archive.ErrClosed

	registryRE  = regexp.MustCompile(`^(?:META-INF/versions/([1-9][0-9]*)/)?META-INF/registry/(.+)$`)
	providersRE = regexp.MustCompile(`^(?:META-INF/versions/([1-9][0-9]*)/)?META-INF/providers/(.+)$`)
	versionedRE = regexp.MustCompile(`^META-INF/versions/([1-9][0-9]*)/(.+)$`)
)

type (
	// PackagingError reports a malformed registration entry.
	PackagingError = archive.PackagingError

	// Key identifies one consolidated registry entry. Version 0 means
	// unversioned.
	Key struct {
		Service string
		Version int
	}

	// rule routes matching entries to a handler. Rules are tried in order and
	// the first match wins.
	rule struct {
		name   string
		match  func(name string) []string
		handle func(a *Aggregator, m []string, name string, content []byte) (bool, error)
	}

	// Aggregator is an archive.Participant that merges service registrations.
	Aggregator struct {
		testMode           bool
		descriptorsService string
		logger             *log.Logger

		services      map[string][]string
		registrations map[Key][]string
		closed        bool
	}

	// Option configures an Aggregator.
	Option func(*Aggregator)
)

var rules = []rule{
	{name: "registry", match: regexpMatcher(registryRE), handle: (*Aggregator).addRegistry},
	{name: "providers", match: regexpMatcher(providersRE), handle: (*Aggregator).addProviders},
	{name: "option descriptors", match: suffixMatcher(optionDescriptorsSuffix), handle: (*Aggregator).addDescriptor},
}

// WithTestMode makes the aggregator pass registration entries through
// unmodified. Test archives keep their raw declarations.
func WithTestMode(test bool) Option {
	return func(a *Aggregator) { a.testMode = test }
}

// WithOptionDescriptorsService overrides the service registered for option
// descriptor classes.
func WithOptionDescriptorsService(service string) Option {
	return func(a *Aggregator) {
		if service != "" {
			a.descriptorsService = service
		}
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(logger *log.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Aggregator for one archive session.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		descriptorsService: DefaultOptionDescriptorsService,
		logger:             log.Default().WithPrefix("registry"),
		registrations:      make(map[Key][]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Opened implements archive.Participant.
func (a *Aggregator) Opened(services map[string][]string) {
	a.services = services
}

// Add implements archive.Participant.
func (a *Aggregator) Add(name string, content []byte) (bool, error) {
	if a.closed {
		return false, ErrClosed
	}
	for _, r := range rules {
		if m := r.match(name); m != nil {
			return r.handle(a, m, name, content)
		}
	}
	return false, nil
}

// Closing implements archive.Participant. Unversioned registrations are
// merged into the services map given to Opened; versioned ones are written
// directly. The aggregator is empty afterwards.
func (a *Aggregator) Closing(w archive.EntryWriter) error {
	if a.closed {
		return ErrClosed
	}
	a.closed = true

	keys := maps.Keys(a.registrations)
	slices.SortFunc(keys, func(x, y Key) int {
		return cmp.Or(cmp.Compare(x.Version, y.Version), cmp.Compare(x.Service, y.Service))
	})
	for _, k := range keys {
		providers := a.registrations[k]
		if k.Version == 0 && a.services != nil {
			a.services[k.Service] = dedupe(append(a.services[k.Service], providers...))
			continue
		}
		if err := w.WriteEntry(EntryName(k), Render(providers)); err != nil {
			return err
		}
	}
	clear(a.registrations)
	return nil
}

// Registrations returns a snapshot of the accumulated providers per key.
func (a *Aggregator) Registrations() map[Key][]string {
	out := make(map[Key][]string, len(a.registrations))
	for k, v := range a.registrations {
		out[k] = dedupe(v)
	}
	return out
}

// EntryName returns the archive entry consolidated registrations for k are
// written to.
func EntryName(k Key) string {
	if k.Version == 0 {
		return archive.ServicesDir + k.Service
	}
	return fmt.Sprintf("META-INF/versions/%d/%s%s", k.Version, archive.ServicesDir, k.Service)
}

// Render formats providers as registry file content: first-seen order,
// duplicates removed, one name per line with a trailing newline.
func Render(providers []string) []byte {
	return []byte(strings.Join(dedupe(providers), "\n") + "\n")
}

func (a *Aggregator) addRegistry(m []string, name string, content []byte) (bool, error) {
	if a.testMode {
		return false, nil
	}
	version, err := parseVersion(m[1], name)
	if err != nil {
		return false, err
	}
	providers, err := archive.ParseLines(name, content)
	if err != nil {
		return false, err
	}
	if len(providers) == 0 {
		return false, &PackagingError{Entry: name, Reason: "registry declaration lists no providers"}
	}
	a.register(Key{Service: m[2], Version: version}, providers...)
	return true, nil
}

func (a *Aggregator) addProviders(m []string, name string, content []byte) (bool, error) {
	if a.testMode {
		return false, nil
	}
	version, err := parseVersion(m[1], name)
	if err != nil {
		return false, err
	}
	services, err := archive.ParseLines(name, content)
	if err != nil {
		return false, err
	}
	if len(services) == 0 {
		return false, &PackagingError{Entry: name, Reason: "provider declaration lists no services"}
	}
	for _, service := range services {
		a.register(Key{Service: service, Version: version}, m[2])
	}
	return true, nil
}

func (a *Aggregator) addDescriptor(_ []string, name string, _ []byte) (bool, error) {
	if a.testMode {
		a.logger.Warn("option descriptor in test archive is not registered", "entry", name)
		return false, nil
	}
	class, version := name, 0
	if m := versionedRE.FindStringSubmatch(name); m != nil {
		v, err := parseVersion(m[1], name)
		if err != nil {
			return false, err
		}
		class, version = m[2], v
	}
	provider := strings.ReplaceAll(strings.TrimSuffix(class, ".class"), "/", ".")
	a.register(Key{Service: a.descriptorsService, Version: version}, provider)
	return false, nil
}

func (a *Aggregator) register(k Key, providers ...string) {
	a.registrations[k] = append(a.registrations[k], providers...)
}

func regexpMatcher(re *regexp.Regexp) func(string) []string {
	return re.FindStringSubmatch
}

func suffixMatcher(suffix string) func(string) []string {
	return func(name string) []string {
		if strings.HasSuffix(name, suffix) {
			return []string{name}
		}
		return nil
	}
}

func parseVersion(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &PackagingError{Entry: name, Reason: "invalid version", Cause: err}
	}
	return v, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
