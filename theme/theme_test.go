package theme

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

const testGPL = `GIMP Palette
Name: duo
Columns: 2
# comment
  0   0   0	black
200 100  50	rust
`

func TestLoadGPL(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "duo.gpl")
	c.Assert(os.WriteFile(path, []byte(testGPL), 0644), qt.IsNil)

	p, err := LoadGPL(path)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Name, qt.Equals, "duo")
	c.Assert(p.Colors, qt.DeepEquals, []RGB{{0, 0, 0}, {200, 100, 50}})
	c.Assert(p.Lookup(0.5), qt.Equals, RGB{100, 50, 25})
	c.Assert(p.Lookup(2), qt.Equals, RGB{200, 100, 50})
	c.Assert(p.Index(-1), qt.Equals, RGB{0, 0, 0})
}

func TestLoadGPLEmpty(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "empty.gpl")
	c.Assert(os.WriteFile(path, []byte("GIMP Palette\n"), 0644), qt.IsNil)
	_, err := LoadGPL(path)
	c.Assert(err, qt.ErrorMatches, "no colors found in palette .*")
}

func TestLoadOrDefault(t *testing.T) {
	c := qt.New(t)
	p, err := LoadOrDefault("")
	c.Assert(err, qt.IsNil)
	c.Assert(p.Name, qt.Equals, "plasma")

	th := New(p)
	c.Assert(string(th.BG()), qt.Equals, "#0d0887")
	c.Assert(string(th.Success()), qt.Equals, "#f0f921")

	_, err = LoadOrDefault(filepath.Join(c.TempDir(), "missing.gpl"))
	c.Assert(err, qt.ErrorMatches, "cannot open palette: .*")
}
