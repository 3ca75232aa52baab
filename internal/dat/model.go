// Package dat parses DAT catalog files — ClrMamePro and Logiqx dialects —
// into a common game/ROM model and indexes their ROM identities.
package dat

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sdalu/distillery/internal/checksum"
	"github.com/sdalu/distillery/internal/rom"
	"github.com/sdalu/distillery/internal/vault"
)

var (
	// ErrContent means the catalog is malformed: bad syntax, duplicate
	// game name, unparsable checksum.
	ErrContent = errors.New("malformed dat")

	// errFormat is the probe sentinel: the input is not this dialect.
	// Never surfaced; the dispatcher tries the next parser.
	errFormat = errors.New("not this dat format")
)

// Meta is the catalog's header information.
type Meta struct {
	Name        string
	Description string
	Version     string
	Date        string
	Author      string
	URL         string
}

// Release is a per-region publication of a game.
type Release struct {
	Name   string
	Region string
}

// Game is a named set of ROMs representing one title.
type Game struct {
	Name     string
	ROMs     []*rom.ROM
	Releases []Release
	CloneOf  string
}

// File is a parsed catalog: games in file order, every ROM in one vault,
// and a reverse index from ROM identity to the games holding it.
type File struct {
	Meta  Meta
	games []*Game
	index map[string]*Game
	roms  *vault.Vault
	owner map[*rom.ROM][]*Game
}

func newFile(meta Meta) *File {
	return &File{
		Meta:  meta,
		index: make(map[string]*Game),
		roms:  vault.New(),
		owner: make(map[*rom.ROM][]*Game),
	}
}

// addGame registers a game; a duplicate name is a content error.
func (f *File) addGame(g *Game) error {
	if _, dup := f.index[g.Name]; dup {
		return fmt.Errorf("%w: duplicate game %q", ErrContent, g.Name)
	}
	f.games = append(f.games, g)
	f.index[g.Name] = g
	for _, r := range g.ROMs {
		f.roms.Add(r)
		f.owner[r] = append(f.owner[r], g)
	}
	return nil
}

// Games returns the catalog's games in file order.
func (f *File) Games() []*Game { return f.games }

// Game returns the named game, nil when absent.
func (f *File) Game(name string) *Game { return f.index[name] }

// ROMs returns the catalog's ROMs as a vault.
func (f *File) ROMs() *vault.Vault { return f.roms }

// GamesOf returns the games holding the given catalog ROM.
func (f *File) GamesOf(r *rom.ROM) []*Game { return f.owner[r] }

// splitEntryName normalizes a catalog ROM name: backslash-separated
// components re-join on the platform separator.
func splitEntryName(name string) string {
	parts := strings.Split(name, `\`)
	return strings.Join(parts, string(filepath.Separator))
}

// newCatalogROM builds the virtual ROM a catalog row describes.
func newCatalogROM(name string, size int64, crc, md5, sha1 string) (*rom.ROM, error) {
	sums := make(map[checksum.Kind][]byte, 3)
	for kind, value := range map[checksum.Kind]string{
		checksum.CRC32: crc,
		checksum.MD5:   md5,
		checksum.SHA1:  sha1,
	} {
		if value != "" {
			sums[kind] = []byte(strings.ToLower(value))
		}
	}
	r, err := rom.New(rom.NewVirtualPath(splitEntryName(name)), size, 0, sums)
	if err != nil {
		return nil, fmt.Errorf("%w: rom %q: %v", ErrContent, name, err)
	}
	return r, nil
}
