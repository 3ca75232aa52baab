package dat

import (
	"errors"
	"strings"
	"testing"

	"github.com/sdalu/distillery/internal/checksum"
)

const logiqxSample = `<?xml version="1.0"?>
<!DOCTYPE datafile PUBLIC "-//Logiqx//DTD ROM Management Datafile//EN" "http://www.logiqx.com/Dats/datafile.dtd">
<datafile>
	<header>
		<name>Test Console</name>
		<description>Test Console catalog</description>
		<version>20210714</version>
		<author>nobody</author>
	</header>
	<game name="Game One">
		<release name="Game One" region="EUR"/>
		<release name="Game One" region="USA"/>
		<rom name="one.bin" size="3" crc="352441c2" md5="900150983cd24fb0d6963f7d28e17f72" sha1="a9993e364706816aba3e25717850c26c9cd0d89d"/>
	</game>
	<game name="Game Two" cloneof="Game One">
		<rom name="sub\two.bin" size="4" sha1="81fe8bfe87576c3ecb22426f8e57847382917acf"/>
	</game>
</datafile>
`

const cmpSample = `clrmamepro (
	name "Test Console"
	description "Test Console catalog"
	version 20210714
	author nobody
)

game (
	name "Game One"
	description "Game One"
	rom ( name one.bin size 3 crc 352441c2 sha1 a9993e364706816aba3e25717850c26c9cd0d89d )
)

game (
	name "Game \"Two\""
	cloneof "Game One"
	rom ( name two.bin size 4 sha1 81fe8bfe87576c3ecb22426f8e57847382917acf )
	disk ( name two.chd sha1 1111111111111111111111111111111111111111 )
)
`

func TestParseLogiqx(t *testing.T) {
	f, err := Parse(strings.NewReader(logiqxSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if f.Meta.Name != "Test Console" || f.Meta.Version != "20210714" {
		t.Errorf("meta = %+v", f.Meta)
	}
	if len(f.Games()) != 2 {
		t.Fatalf("games = %d", len(f.Games()))
	}

	one := f.Game("Game One")
	if one == nil {
		t.Fatal("Game One missing")
	}
	if len(one.Releases) != 2 || one.Releases[0].Region != "EUR" {
		t.Errorf("releases = %+v", one.Releases)
	}
	if len(one.ROMs) != 1 {
		t.Fatalf("roms = %d", len(one.ROMs))
	}
	r := one.ROMs[0]
	if r.Name() != "one.bin" || r.Size() != 3 {
		t.Errorf("rom = %s/%d", r.Name(), r.Size())
	}
	if got := r.ChecksumHex(checksum.SHA1); got != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("sha1 = %s", got)
	}
	if got := r.ChecksumHex(checksum.CRC32); got != "352441c2" {
		t.Errorf("crc32 = %s", got)
	}

	two := f.Game("Game Two")
	if two.CloneOf != "Game One" {
		t.Errorf("cloneof = %q", two.CloneOf)
	}
	// Backslash-separated names re-join on the platform separator.
	if got := two.ROMs[0].Name(); !strings.Contains(got, "two.bin") || strings.Contains(got, `\`) {
		t.Errorf("name = %q", got)
	}
}

func TestParseClrMamePro(t *testing.T) {
	f, err := Parse(strings.NewReader(cmpSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if f.Meta.Name != "Test Console" {
		t.Errorf("meta = %+v", f.Meta)
	}
	if len(f.Games()) != 2 {
		t.Fatalf("games = %d", len(f.Games()))
	}

	// Escaped quotes inside quoted strings.
	if f.Game(`Game "Two"`) == nil {
		t.Error(`Game "Two" missing`)
	}

	two := f.Game(`Game "Two"`)
	// rom and disk entries both count.
	if len(two.ROMs) != 2 {
		t.Errorf("roms = %d, want rom + disk", len(two.ROMs))
	}
}

func TestParseDispatchAndContentErrors(t *testing.T) {
	// Neither dialect.
	_, err := Parse(strings.NewReader("this is not a catalog"))
	if !errors.Is(err, ErrContent) {
		t.Errorf("err = %v, want ErrContent", err)
	}

	// XML without the Logiqx DTD falls through and fails.
	plain := `<?xml version="1.0"?><datafile><game name="g"/></datafile>`
	if _, err := Parse(strings.NewReader(plain)); !errors.Is(err, ErrContent) {
		t.Errorf("err = %v, want ErrContent", err)
	}
}

func TestParseDuplicateGameFails(t *testing.T) {
	dup := `clrmamepro ( name x )
game ( name "Same" rom ( name a.bin size 1 crc 00000000 ) )
game ( name "Same" rom ( name b.bin size 1 crc 00000001 ) )
`
	_, err := Parse(strings.NewReader(dup))
	if !errors.Is(err, ErrContent) {
		t.Errorf("err = %v, want ErrContent", err)
	}
}

func TestROMIndexAndReverseMap(t *testing.T) {
	f, err := Parse(strings.NewReader(logiqxSample))
	if err != nil {
		t.Fatal(err)
	}

	if f.ROMs().Size() != 2 {
		t.Fatalf("rom vault size = %d", f.ROMs().Size())
	}

	one := f.Game("Game One")
	owners := f.GamesOf(one.ROMs[0])
	if len(owners) != 1 || owners[0] != one {
		t.Errorf("owners = %v", owners)
	}
}

func TestCatalogROMsAreVirtual(t *testing.T) {
	f, err := Parse(strings.NewReader(logiqxSample))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range f.ROMs().ROMs() {
		if r.Path().File() != "" {
			t.Errorf("catalog rom %s has a filesystem target", r.Name())
		}
	}
}

func TestClrMameProMissingHeaderIsNotThisFormat(t *testing.T) {
	// A game-only token stream lacks the clrmamepro group and must be
	// rejected as a dialect mismatch, which Parse turns into ErrContent.
	_, err := parseClrMamePro(strings.NewReader(`game ( name x )`))
	if !errors.Is(err, errFormat) {
		t.Errorf("err = %v, want errFormat", err)
	}
}
