package tools

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func stubBuild(t *testing.T, fail string) *[]string {
	t.Helper()
	var calls []string
	old := goBuild
	goBuild = func(pkg, out string, w io.Writer) error {
		calls = append(calls, pkg+" -> "+filepath.Base(out))
		if pkg == fail {
			return errors.New("exit status 1")
		}
		return nil
	}
	t.Cleanup(func() { goBuild = old })
	return &calls
}

func TestInstall(t *testing.T) {
	calls := stubBuild(t, "")
	dir := filepath.Join(t.TempDir(), "bin")

	paths, err := Install(InstallOptions{BinDir: dir, Output: io.Discard})
	if err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if len(paths) != 2 || len(*calls) != 2 {
		t.Fatalf("expected two builds, got %v", *calls)
	}
	if (*calls)[0] != "./cmd/ember -> "+exeName("ember") || (*calls)[1] != "./cmd/ember-lsp -> "+exeName("ember-lsp") {
		t.Fatalf("unexpected builds %v", *calls)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("bin dir was not created")
	}
}

func TestInstallStopsOnFailure(t *testing.T) {
	calls := stubBuild(t, "./cmd/ember")
	_, err := Install(InstallOptions{BinDir: t.TempDir(), Output: io.Discard})
	if err == nil || err.Error() != "build ember: exit status 1" {
		t.Fatalf("unexpected error %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected to stop after the first failure, got %v", *calls)
	}
}
