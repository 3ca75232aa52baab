package distillery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sdalu/distillery/internal/archive"
	"github.com/sdalu/distillery/internal/dat"
	"github.com/sdalu/distillery/internal/rom"
)

// Verdict classifies one catalog ROM's validation outcome.
type Verdict int

const (
	Validated Verdict = iota
	NotFound
	MissingDuplicate
	NameMismatch
	WrongPlace
)

func (v Verdict) String() string {
	switch v {
	case Validated:
		return "validated"
	case NotFound:
		return "not found"
	case MissingDuplicate:
		return "missing duplicate"
	case NameMismatch:
		return "name mismatch"
	case WrongPlace:
		return "wrong place"
	default:
		return fmt.Sprintf("distillery.Verdict(%d)", int(v))
	}
}

// Message renders the per-ROM error string, e.g. "name mismatch (zzz.bin)".
func (v Verdict) Message(detail string) string {
	if detail == "" {
		return v.String()
	}
	return v.String() + " (" + detail + ")"
}

// ValidateStats counts outcomes per verdict.
type ValidateStats map[Verdict]int

// Errors returns the number of non-validated outcomes.
func (s ValidateStats) Errors() int {
	total := 0
	for v, n := range s {
		if v != Validated {
			total += n
		}
	}
	return total
}

// ValidateEvents receives validation progress, one game and one ROM at a
// time. Any field may be nil.
type ValidateEvents struct {
	GameStart func(g *dat.Game)
	ROMStart  func(r *rom.ROM)
	ROMEnd    func(r *rom.ROM, verdict Verdict, detail string)
	GameEnd   func(g *dat.Game, errors, count int)
}

// Validate walks the catalog game by game and classifies every catalog
// ROM against the vault: present under the right name in the right
// place, or one of the §failure verdicts. Cancellation is checked
// between games.
func (s *Storage) Validate(ctx context.Context, d *dat.File, ev *ValidateEvents) (ValidateStats, error) {
	if ev == nil {
		ev = &ValidateEvents{}
	}
	stats := make(ValidateStats)

	for _, game := range d.Games() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if ev.GameStart != nil {
			ev.GameStart(game)
		}
		gameErrors := 0

		for _, catROM := range game.ROMs {
			if ev.ROMStart != nil {
				ev.ROMStart(catROM)
			}
			verdict, detail := s.validateROM(d, game, catROM)
			stats[verdict]++
			if verdict != Validated {
				gameErrors++
			}
			if ev.ROMEnd != nil {
				ev.ROMEnd(catROM, verdict, detail)
			}
		}

		if ev.GameEnd != nil {
			ev.GameEnd(game, gameErrors, len(game.ROMs))
		}
	}
	return stats, nil
}

func (s *Storage) validateROM(d *dat.File, game *dat.Game, catROM *rom.ROM) (Verdict, string) {
	matches := s.vault.Match(catROM)
	if matches == nil {
		return NotFound, ""
	}

	named := false
	for _, m := range matches {
		if m.Name() == catROM.Name() {
			named = true
			break
		}
	}
	if !named {
		if s.nameTakenByCatalog(d, catROM.Name()) {
			return MissingDuplicate, ""
		}
		detail := ""
		if len(matches) == 1 {
			detail = matches[0].Name()
		}
		return NameMismatch, detail
	}

	for _, m := range matches {
		if s.inPlace(m, game.Name) {
			return Validated, ""
		}
	}
	return WrongPlace, ""
}

// nameTakenByCatalog reports whether every vault ROM bearing the given
// name corresponds to some catalog ROM — the name slot is legitimately
// occupied by a cataloged duplicate and only this copy is missing.
func (s *Storage) nameTakenByCatalog(d *dat.File, name string) bool {
	found := false
	for _, vr := range s.vault.ROMs() {
		if vr.Name() != name {
			continue
		}
		found = true
		if d.ROMs().Match(vr) == nil {
			return false
		}
	}
	return found
}

// inPlace reports whether a matched vault ROM sits where the game
// expects it: a container named after the game, or one of the root ROM
// directories.
func (s *Storage) inPlace(m *rom.ROM, gameName string) bool {
	storage := m.Path().Storage()
	if storage == "" {
		return false
	}
	base := filepath.Base(storage)
	if ext := archive.DefaultRegistry().MatchedExtension(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == gameName {
		return true
	}
	for _, root := range s.rootDirs {
		if base == root {
			return true
		}
	}
	return false
}
