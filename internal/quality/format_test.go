package quality

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestGofmt 检查仓库内所有 Go 源文件都通过 gofmt，保证提交格式一致。
func TestGofmt(t *testing.T) {
	root, err := projectRoot()
	if err != nil {
		t.Fatalf("find project root: %v", err)
	}

	var goFiles []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if name == "vendor" || name == ".git" || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			goFiles = append(goFiles, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk project: %v", err)
	}
	if len(goFiles) == 0 {
		t.Fatal("no Go files found")
	}

	for _, file := range goFiles {
		out, err := exec.Command("gofmt", "-l", file).Output()
		if err != nil {
			t.Errorf("gofmt failed for %s: %v", file, err)
			continue
		}
		if len(out) > 0 {
			t.Errorf("%s is not gofmt-formatted", file)
		}
	}
}

func projectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
