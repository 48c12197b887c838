package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rbxtract/internal/ignore"
	"rbxtract/internal/rbxml"
)

const fixture = `<roblox version="4">
  <Item class="ServerScriptService">
    <Properties><string name="Name">ServerScriptService</string></Properties>
    <Item class="Folder">
      <Properties><string name="Name">Core</string></Properties>
      <Item class="Script">
        <Properties>
          <string name="Name">Main</string>
          <ProtectedString name="Source">print("main")</ProtectedString>
        </Properties>
      </Item>
    </Item>
    <Item class="Script">
      <Properties>
        <string name="Name">Boot</string>
        <ProtectedString name="Source">print("boot")</ProtectedString>
      </Properties>
    </Item>
    <Item class="Script">
      <Properties>
        <string name="Name">Stub</string>
        <ProtectedString name="Source"></ProtectedString>
      </Properties>
    </Item>
  </Item>
  <Item class="ReplicatedStorage">
    <Properties><string name="Name">ReplicatedStorage</string></Properties>
    <Item class="ModuleScript">
      <Properties>
        <string name="Name">Utils</string>
        <ProtectedString name="Source">return 1</ProtectedString>
      </Properties>
    </Item>
    <Item class="ModuleScript">
      <Properties>
        <string name="Name">Utils</string>
        <ProtectedString name="Source">return 2</ProtectedString>
      </Properties>
    </Item>
    <Item class="ModuleScript">
      <Properties>
        <string name="Name">Utils</string>
        <ProtectedString name="Source">return 3</ProtectedString>
      </Properties>
    </Item>
    <Item class="Folder">
      <Properties><string name="Name">Empty</string></Properties>
    </Item>
  </Item>
  <Item class="StarterPlayer">
    <Properties><string name="Name">StarterPlayer</string></Properties>
    <Item class="StarterPlayerScripts">
      <Properties><string name="Name">StarterPlayerScripts</string></Properties>
      <Item class="LocalScript">
        <Properties>
          <string name="Name">Move</string>
          <ProtectedString name="Source">move()</ProtectedString>
        </Properties>
      </Item>
    </Item>
    <Item class="StarterCharacterScripts">
      <Properties><string name="Name">StarterCharacterScripts</string></Properties>
      <Item class="Script">
        <Properties>
          <string name="Name">Init</string>
          <ProtectedString name="Source">init()</ProtectedString>
        </Properties>
      </Item>
    </Item>
  </Item>
  <Item class="Lighting">
    <Properties><string name="Name">Lighting</string></Properties>
    <Item class="Script">
      <Properties>
        <string name="Name">Orphan</string>
        <ProtectedString name="Source">never()</ProtectedString>
      </Properties>
    </Item>
  </Item>
  <Item class="ServerStorage">
    <Properties><string name="Name">ServerStorage</string></Properties>
    <Item class="Folder">
      <Properties><string name="Name">What?Now</string></Properties>
      <Item class="Script">
        <Properties>
          <string name="Name">A/B</string>
          <ProtectedString name="Source">weird()</ProtectedString>
        </Properties>
      </Item>
    </Item>
  </Item>
</roblox>`

func runFixture(t *testing.T, opts Options) (*Result, string) {
	t.Helper()
	doc, err := rbxml.Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := filepath.Join(t.TempDir(), "src")
	opts.Output = out
	res, err := Run(doc, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res, out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestRunWritesScripts(t *testing.T) {
	res, out := runFixture(t, Options{})

	tests := []struct {
		rel    string
		source string
	}{
		{"server/Core/Main.lua", `print("main")`},
		{"server/Boot.lua", `print("boot")`},
		{"shared/Utils.lua", "return 1"},
		{"shared/Utils_1.lua", "return 2"},
		{"shared/Utils_2.lua", "return 3"},
		{"client/Move.lua", "move()"},
		{"client/StarterCharacterScripts/Init.lua", "init()"},
		{"server/What_Now/A_B.lua", "weird()"},
	}
	for _, tt := range tests {
		got := readFile(t, filepath.Join(out, filepath.FromSlash(tt.rel)))
		if got != tt.source {
			t.Errorf("%s = %q, want %q", tt.rel, got, tt.source)
		}
	}

	if len(res.Records) != len(tests) {
		t.Errorf("got %d records, want %d", len(res.Records), len(tests))
	}
}

func TestRunBaseDirs(t *testing.T) {
	_, out := runFixture(t, Options{})

	for _, tag := range []string{"server", "client", "shared", "workspace"} {
		info, err := os.Stat(filepath.Join(out, tag))
		if err != nil || !info.IsDir() {
			t.Errorf("base directory %s missing", tag)
		}
	}
}

func TestRunEmptyFolderMaterialized(t *testing.T) {
	_, out := runFixture(t, Options{})

	info, err := os.Stat(filepath.Join(out, "shared", "Empty"))
	if err != nil || !info.IsDir() {
		t.Error("empty Folder instance should become a directory")
	}
	entries, err := os.ReadDir(filepath.Join(out, "shared", "Empty"))
	if err != nil || len(entries) != 0 {
		t.Errorf("Empty should contain nothing, got %v, %v", entries, err)
	}
}

func TestRunSkips(t *testing.T) {
	res, out := runFixture(t, Options{})

	// Empty Source: no file, no record
	if _, err := os.Stat(filepath.Join(out, "server", "Stub.lua")); !os.IsNotExist(err) {
		t.Error("script with empty Source must not be written")
	}
	// No recognized service ancestor: nothing at all
	var found bool
	filepath.WalkDir(out, func(path string, _ os.DirEntry, _ error) error {
		if strings.Contains(path, "Orphan") {
			found = true
		}
		return nil
	})
	if found {
		t.Error("script outside recognized services must not be written")
	}
	for _, rec := range res.Records {
		if rec.Name == "Stub" || rec.Name == "Orphan" {
			t.Errorf("unexpected record for %s", rec.Name)
		}
	}
}

func TestRunRecords(t *testing.T) {
	res, _ := runFixture(t, Options{})

	byPath := make(map[string]Record)
	for _, rec := range res.Records {
		byPath[rec.Path] = rec
	}

	move, ok := byPath["client/Move.lua"]
	if !ok {
		t.Fatal("no record for client/Move.lua")
	}
	if move.Class != "LocalScript" || move.Service != "StarterPlayer" {
		t.Errorf("record = %+v", move)
	}
	// The flattened marker folder does not appear in the logical path
	if move.LogicalPath != "StarterPlayer/Move" {
		t.Errorf("logical path = %q, want StarterPlayer/Move", move.LogicalPath)
	}
	if move.Digest == "" || move.Size != len("move()") {
		t.Errorf("digest/size = %q/%d", move.Digest, move.Size)
	}

	charInit, ok := byPath["client/StarterCharacterScripts/Init.lua"]
	if !ok {
		t.Fatal("no record for StarterCharacterScripts/Init.lua")
	}
	if charInit.LogicalPath != "StarterPlayer/StarterCharacterScripts/Init" {
		t.Errorf("logical path = %q", charInit.LogicalPath)
	}
}

func TestRunCollisionOrder(t *testing.T) {
	res, _ := runFixture(t, Options{})

	var sources []string
	for _, rec := range res.Records {
		if strings.HasPrefix(rec.Path, "shared/Utils") {
			sources = append(sources, rec.Path)
		}
	}
	want := []string{"shared/Utils.lua", "shared/Utils_1.lua", "shared/Utils_2.lua"}
	if len(sources) != len(want) {
		t.Fatalf("got %v", sources)
	}
	for i := range want {
		if sources[i] != want[i] {
			t.Errorf("collision %d = %q, want %q (first encountered wins the bare name)", i, sources[i], want[i])
		}
	}
}

func TestRunExclude(t *testing.T) {
	m := ignore.NewMatcher()
	m.AddPattern("ReplicatedStorage/**")
	res, out := runFixture(t, Options{Exclude: m})

	if _, err := os.Stat(filepath.Join(out, "shared", "Utils.lua")); !os.IsNotExist(err) {
		t.Error("excluded script must not be written")
	}
	// Three scripts plus the Empty folder
	if res.Excluded != 4 {
		t.Errorf("Excluded = %d, want 4", res.Excluded)
	}
	for _, rec := range res.Records {
		if rec.Service == "ReplicatedStorage" {
			t.Errorf("unexpected record %+v", rec)
		}
	}
}

func TestRunDestructive(t *testing.T) {
	out := filepath.Join(t.TempDir(), "src")
	stale := filepath.Join(out, "server", "Gone.lua")
	os.MkdirAll(filepath.Dir(stale), 0o755)
	os.WriteFile(stale, []byte("old"), 0o644)

	doc, err := rbxml.Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Run(doc, Options{Output: out}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("previous output must be deleted before writing")
	}
}

func TestRunProgressOrder(t *testing.T) {
	var seen []string
	runFixture(t, Options{Progress: func(rec Record) {
		seen = append(seen, rec.Path)
	}})

	if len(seen) != 8 {
		t.Fatalf("got %d progress calls, want 8", len(seen))
	}
	// Traversal order is document order
	if seen[0] != "server/Core/Main.lua" || seen[1] != "server/Boot.lua" {
		t.Errorf("unexpected order: %v", seen[:2])
	}
}

func TestAllocate(t *testing.T) {
	used := make(map[string]struct{})
	tests := []struct {
		in   string
		want string
	}{
		{"shared/U.lua", "shared/U.lua"},
		{"shared/U.lua", "shared/U_1.lua"},
		{"shared/U.lua", "shared/U_2.lua"},
		{"shared/U_1.lua", "shared/U_1_1.lua"},
		{"server/U.lua", "server/U.lua"},
	}
	for _, tt := range tests {
		if got := allocate(used, tt.in); got != tt.want {
			t.Errorf("allocate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
