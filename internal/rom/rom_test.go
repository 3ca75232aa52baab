package rom

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sdalu/distillery/internal/checksum"
)

func newTestROM(t *testing.T, name string, sha1hex string) *ROM {
	t.Helper()
	r, err := New(NewVirtualPath(name), 4, 0, map[checksum.Kind][]byte{
		checksum.SHA1: []byte(sha1hex),
	})
	if err != nil {
		t.Fatalf("new rom: %v", err)
	}
	return r
}

func TestNewCanonicalizesHex(t *testing.T) {
	hexValue := strings.Repeat("ab", 20)
	r := newTestROM(t, "a.bin", hexValue)
	if got := r.ChecksumHex(checksum.SHA1); got != hexValue {
		t.Errorf("sha1 = %s, want %s", got, hexValue)
	}
	want := bytes.Repeat([]byte{0xab}, 20)
	if !bytes.Equal(r.Checksum(checksum.SHA1), want) {
		t.Errorf("binary form = %x", r.Checksum(checksum.SHA1))
	}
}

func TestNewRejectsWrongWidth(t *testing.T) {
	_, err := New(NewVirtualPath("a.bin"), 4, 0, map[checksum.Kind][]byte{
		checksum.CRC32: []byte("0102030405"),
	})
	if err == nil {
		t.Error("expected error for wrong checksum width")
	}
}

func TestNewZeroSizeGetsNilChecksums(t *testing.T) {
	r, err := New(NewVirtualPath("empty.bin"), 0, 0, nil)
	if err != nil {
		t.Fatalf("new rom: %v", err)
	}
	for _, k := range checksum.ByStrength {
		if got := r.ChecksumHex(k); got != k.NilValueHex() {
			t.Errorf("%s = %s, want nil-content value", k, got)
		}
	}
}

func TestNewUnknownSizeDropsOffset(t *testing.T) {
	r, err := New(NewVirtualPath("x.bin"), SizeUnknown, 5, nil)
	if err != nil {
		t.Fatalf("new rom: %v", err)
	}
	if r.Offset() != SizeUnknown {
		t.Errorf("offset = %d, want SizeUnknown", r.Offset())
	}
	if r.Headered() {
		t.Error("size-less rom cannot be headered")
	}
}

func TestSame(t *testing.T) {
	shaA := strings.Repeat("aa", 20)
	shaB := strings.Repeat("bb", 20)
	crc := "01020304"

	a := newTestROM(t, "a.bin", shaA)
	b := newTestROM(t, "b.bin", shaA)
	c := newTestROM(t, "c.bin", shaB)

	if same, ok := Same(a, b); !ok || !same {
		t.Errorf("Same(a, b) = %v/%v, want true/true", same, ok)
	}
	if same, ok := Same(a, c); !ok || same {
		t.Errorf("Same(a, c) = %v/%v, want false/true", same, ok)
	}

	// Weak-only coincidence still counts.
	weak1, err := New(NewVirtualPath("w1"), 4, 0, map[checksum.Kind][]byte{checksum.CRC32: []byte(crc)})
	if err != nil {
		t.Fatal(err)
	}
	weak2, err := New(NewVirtualPath("w2"), 4, 0, map[checksum.Kind][]byte{checksum.CRC32: []byte(crc)})
	if err != nil {
		t.Fatal(err)
	}
	if same, ok := Same(weak1, weak2); !ok || !same {
		t.Errorf("weak Same = %v/%v, want true/true", same, ok)
	}

	// No shared kind: indeterminate.
	if _, ok := Same(a, weak1); ok {
		t.Error("expected indeterminate comparison")
	}
}

func TestHeaderedAndHeader(t *testing.T) {
	dir := t.TempDir()
	content := append([]byte("HEADERHEADER"), []byte("payload")...)
	if err := os.WriteFile(filepath.Join(dir, "game.bin"), content, 0644); err != nil {
		t.Fatal(err)
	}
	p, err := NewFilePath("game.bin", dir)
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(p, int64(len("payload")), int64(len("HEADERHEADER")), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Headered() {
		t.Fatal("expected headered")
	}
	hdr, err := r.Header()
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if string(hdr) != "HEADERHEADER" {
		t.Errorf("header = %q", hdr)
	}
	if int64(len(hdr)) != r.Offset() {
		t.Errorf("header length %d != offset %d", len(hdr), r.Offset())
	}
}

func TestCopyParts(t *testing.T) {
	dir := t.TempDir()
	content := []byte("HHHHpayload")
	if err := os.WriteFile(filepath.Join(dir, "game.bin"), content, 0644); err != nil {
		t.Fatal(err)
	}
	p, err := NewFilePath("game.bin", dir)
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(p, 7, 4, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		part Part
		want string
	}{
		{"all", PartAll, "HHHHpayload"},
		{"rom", PartROM, "payload"},
		{"header", PartHeader, "HHHH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := filepath.Join(dir, "out-"+tt.name)
			ok, err := r.Copy(dst, tt.part, false, false)
			if err != nil {
				t.Fatalf("copy: %v", err)
			}
			if !ok {
				t.Fatal("copy reported not done")
			}
			got, err := os.ReadFile(dst)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("copied %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCopyHeaderOfUnheaderedFails(t *testing.T) {
	r := newTestROM(t, "a.bin", strings.Repeat("aa", 20))
	if _, err := r.Copy(filepath.Join(t.TempDir(), "out"), PartHeader, false, false); err == nil {
		t.Error("expected error copying header of unheadered rom")
	}
}

func TestDeleteDropsToVirtual(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(file, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := NewFilePath("a.bin", dir)
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(p, 4, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := r.Delete()
	if err != nil || !ok {
		t.Fatalf("delete = %v/%v", ok, err)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
	if _, virtual := r.Path().(*VirtualPath); !virtual {
		t.Errorf("path is %T, want *VirtualPath", r.Path())
	}
	if r.Path().Entry() != "a.bin" {
		t.Errorf("entry = %q, want preserved name", r.Path().Entry())
	}
}
