package internal

import (
	"bytes"
	"go/format"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// projectRoot returns the module root whether tests run from internal/ or
// from the root itself.
func projectRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(wd) == "internal" {
		return filepath.Dir(wd)
	}
	return wd
}

// walkGoFiles calls fn for every .go file under internal/ and cmd/.
func walkGoFiles(t *testing.T, fn func(path string, content []byte)) {
	t.Helper()
	root := projectRoot(t)
	for _, dir := range []string{"internal", "cmd"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if name := d.Name(); name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			fn(rel, content)
			return nil
		})
		if err != nil {
			t.Fatalf("Failed to walk %s: %v", dir, err)
		}
	}
}

// TestGofmtCompliance fails for any source file that gofmt would change.
// Fix with: gofmt -w ./internal/ ./cmd/
func TestGofmtCompliance(t *testing.T) {
	var unformatted []string
	walkGoFiles(t, func(path string, content []byte) {
		formatted, err := format.Source(content)
		if err != nil {
			t.Errorf("%s does not parse: %v", path, err)
			return
		}
		if !bytes.Equal(content, formatted) {
			unformatted = append(unformatted, path)
		}
	})

	for _, f := range unformatted {
		t.Errorf("not gofmt-formatted: %s", f)
	}
}

// TestInternalImportsStayInModule checks that every import under the
// module's own path names a package that exists in this tree.
func TestInternalImportsStayInModule(t *testing.T) {
	const modulePath = "github.com/Iron-Ham/dossier/"
	root := projectRoot(t)
	fset := token.NewFileSet()

	walkGoFiles(t, func(path string, content []byte) {
		f, err := parser.ParseFile(fset, path, content, parser.ImportsOnly)
		if err != nil {
			t.Errorf("%s does not parse: %v", path, err)
			return
		}
		for _, imp := range f.Imports {
			p, _ := strconv.Unquote(imp.Path.Value)
			if !strings.HasPrefix(p, modulePath) {
				continue
			}
			dir := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(p, modulePath)))
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				t.Errorf("%s imports %s, which is not in this module", path, p)
			}
		}
	})
}

// TestGolangciLintCompliance runs golangci-lint when it is installed.
func TestGolangciLintCompliance(t *testing.T) {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}

	// A per-test build cache keeps the run working in read-only sandboxes.
	cmd := exec.Command("golangci-lint", "run", "--allow-parallel-runners", "./...")
	cmd.Dir = projectRoot(t)
	cmd.Env = append(os.Environ(), "GOCACHE="+t.TempDir())
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Errorf("golangci-lint found issues:\n%s", output)
	}
}
