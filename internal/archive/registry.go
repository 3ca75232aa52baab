package archive

import (
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Registry maps file extensions and content types to providers. It is
// populated during startup registration and read-only afterwards.
type Registry struct {
	byExt  map[string]Provider
	byMime map[string]Provider
	warn   func(msg string, args ...any)
}

// NewRegistry creates an empty registry. warn receives a message when a
// registration overrides an earlier one; nil discards.
func NewRegistry(warn func(msg string, args ...any)) *Registry {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &Registry{
		byExt:  make(map[string]Provider),
		byMime: make(map[string]Provider),
		warn:   warn,
	}
}

// Register claims the provider's extensions and mimetypes. Later
// registrations override earlier ones with a warning.
func (r *Registry) Register(p Provider) {
	for _, ext := range p.Extensions() {
		ext = strings.ToLower(ext)
		if prev, ok := r.byExt[ext]; ok && prev.Name() != p.Name() {
			r.warn("archiver override", "extension", ext, "old", prev.Name(), "new", p.Name())
		}
		r.byExt[ext] = p
	}
	for _, mt := range p.MimeTypes() {
		if prev, ok := r.byMime[mt]; ok && prev.Name() != p.Name() {
			r.warn("archiver override", "mimetype", mt, "old", prev.Name(), "new", p.Name())
		}
		r.byMime[mt] = p
	}
}

// ForFile resolves a provider for the given file: first the longest
// registered extension suffix (so ".tar.zst"-style doubles win over
// ".zst"), then a content-type sniff of the file header.
func (r *Registry) ForFile(path string) Provider {
	lower := strings.ToLower(path)

	var best string
	for ext := range r.byExt {
		if strings.HasSuffix(lower, ext) && len(ext) > len(best) {
			best = ext
		}
	}
	if best != "" {
		return r.byExt[best]
	}

	if len(r.byMime) > 0 {
		if mt, err := mimetype.DetectFile(path); err == nil {
			for name, p := range r.byMime {
				if mt.Is(name) {
					return p
				}
			}
		}
	}
	return nil
}

// MatchedExtension returns the longest registered extension suffix of
// path, "" when none matches.
func (r *Registry) MatchedExtension(path string) string {
	lower := strings.ToLower(path)
	var best string
	for ext := range r.byExt {
		if strings.HasSuffix(lower, ext) && len(ext) > len(best) {
			best = ext
		}
	}
	return best
}

// ForExtension resolves a provider by extension alone (with or without
// leading dot).
func (r *Registry) ForExtension(ext string) Provider {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return r.byExt[ext]
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// defaultRegistry is the process-wide registry, filled in by the
// application during startup.
var defaultRegistry = NewRegistry(nil)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// SetDefaultRegistry installs the process-wide registry, returning it.
// The application calls this once after wiring providers from config.
func SetDefaultRegistry(r *Registry) *Registry {
	defaultRegistry = r
	return r
}

// Register adds a provider to the process-wide registry.
func Register(p Provider) { defaultRegistry.Register(p) }

// ForFile resolves a provider from the process-wide registry.
func ForFile(path string) Provider { return defaultRegistry.ForFile(path) }

// Extensions lists the process-wide registry's extensions.
func Extensions() []string { return defaultRegistry.Extensions() }
