// Package vault holds a content-indexed collection of ROM descriptors.
// It is storage only: insertion order is preserved, matching and set
// algebra run over per-checksum inverted indexes, and nothing here knows
// about catalogs.
package vault

import (
	"github.com/sdalu/distillery/internal/checksum"
	"github.com/sdalu/distillery/internal/rom"
)

// Vault is an ordered multi-set of ROMs with four inverted indexes, one
// per checksum kind.
type Vault struct {
	roms    []*rom.ROM
	indexes map[checksum.Kind]map[string][]*rom.ROM

	ignore *IgnoreMatcher
}

// Option configures a new Vault.
type Option func(*Vault)

// WithIgnore installs extra ignore patterns applied during ingestion, on
// top of the fixed prune rules.
func WithIgnore(m *IgnoreMatcher) Option {
	return func(v *Vault) { v.ignore = m }
}

// New creates an empty vault.
func New(opts ...Option) *Vault {
	v := &Vault{
		indexes: make(map[checksum.Kind]map[string][]*rom.ROM, len(checksum.ByStrength)),
	}
	for _, k := range checksum.ByStrength {
		v.indexes[k] = make(map[string][]*rom.ROM)
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Add appends r to the vault and indexes its checksums. A ROM whose
// checksum and path both coincide with an already-indexed one does not
// shadow it: the first insertion wins that index slot.
func (v *Vault) Add(r *rom.ROM) {
	v.roms = append(v.roms, r)
	for _, k := range checksum.ByStrength {
		value := r.Checksum(k)
		if value == nil {
			continue
		}
		key := string(value)
		bucket := v.indexes[k][key]
		dup := false
		for _, held := range bucket {
			if held.Path().String() == r.Path().String() {
				dup = true
				break
			}
		}
		if !dup {
			v.indexes[k][key] = append(bucket, r)
		}
	}
}

// ROMs returns the vault's ROMs in insertion order. The slice is shared;
// callers must not mutate it.
func (v *Vault) ROMs() []*rom.ROM { return v.roms }

// Size returns the number of held ROMs.
func (v *Vault) Size() int { return len(v.roms) }

// Empty reports whether the vault holds no ROMs.
func (v *Vault) Empty() bool { return len(v.roms) == 0 }

// Each visits the ROMs in insertion order until fn returns false.
func (v *Vault) Each(fn func(r *rom.ROM) bool) {
	for _, r := range v.roms {
		if !fn(r) {
			return
		}
	}
}

// MatchChecksums returns the ROMs matching a checksum map, walking kinds
// strongest first and returning the first populated bucket. nil when no
// defined checksum matches.
func (v *Vault) MatchChecksums(sums map[checksum.Kind][]byte) []*rom.ROM {
	for _, k := range checksum.ByStrength {
		value := sums[k]
		if value == nil {
			continue
		}
		if bucket := v.indexes[k][string(value)]; len(bucket) > 0 {
			out := make([]*rom.ROM, len(bucket))
			copy(out, bucket)
			return out
		}
	}
	return nil
}

// Match returns the ROMs whose content matches r, nil when none does.
func (v *Vault) Match(r *rom.ROM) []*rom.ROM {
	sums := make(map[checksum.Kind][]byte, 4)
	for _, k := range r.Checksums() {
		sums[k] = r.Checksum(k)
	}
	return v.MatchChecksums(sums)
}

// Intersect returns a new vault holding, in v's order, the ROMs of v that
// match in o.
func (v *Vault) Intersect(o *Vault) *Vault {
	out := New()
	for _, r := range v.roms {
		if o.Match(r) != nil {
			out.Add(r)
		}
	}
	return out
}

// Subtract returns a new vault holding, in v's order, the ROMs of v with
// no match in o.
func (v *Vault) Subtract(o *Vault) *Vault {
	out := New()
	for _, r := range v.roms {
		if o.Match(r) == nil {
			out.Add(r)
		}
	}
	return out
}
