package distillery

import (
	"github.com/sdalu/distillery/internal/dat"
	"github.com/sdalu/distillery/internal/vault"
)

// CheckResult relates a vault to a catalog: which catalog ROMs are
// missing, which vault ROMs the catalog does not know, and which catalog
// ROMs are present.
type CheckResult struct {
	Missing  *vault.Vault
	Extra    *vault.Vault
	Included *vault.Vault
}

// Perfect reports a complete collection with nothing extra.
func (r *CheckResult) Perfect() bool {
	return r.Missing.Empty() && r.Extra.Empty()
}

// Check computes the set relations between the storage's vault and the
// catalog.
func (s *Storage) Check(d *dat.File) *CheckResult {
	return &CheckResult{
		Missing:  d.ROMs().Subtract(s.vault),
		Extra:    s.vault.Subtract(d.ROMs()),
		Included: d.ROMs().Intersect(s.vault),
	}
}
