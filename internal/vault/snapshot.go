package vault

import (
	"fmt"
	"os"
	"time"

	"github.com/sdalu/distillery/internal/rom"
)

// SnapshotEntry captures one ROM's identity plus the modification time of
// its storage at snapshot time.
type SnapshotEntry struct {
	Info  rom.Info
	MTime time.Time
	ROM   *rom.ROM
}

// Snapshot maps path strings to snapshot entries.
type Snapshot map[string]SnapshotEntry

// Index snapshots the vault: every ROM with physical storage, keyed by
// its path string, stamped with the storage's current mtime. Archive
// mtimes are read once per archive file.
func (v *Vault) Index() (Snapshot, error) {
	snap := make(Snapshot, len(v.roms))
	mtimes := make(map[string]time.Time)

	for _, r := range v.roms {
		storage := r.Path().File()
		if storage == "" {
			continue
		}
		mtime, ok := mtimes[storage]
		if !ok {
			info, err := os.Stat(storage)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", storage, err)
			}
			mtime = info.ModTime()
			mtimes[storage] = mtime
		}
		snap[r.Path().String()] = SnapshotEntry{Info: r.Info(), MTime: mtime, ROM: r}
	}
	return snap, nil
}
