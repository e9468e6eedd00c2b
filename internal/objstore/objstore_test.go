package objstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

func TestSizeCheck(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		size    int64
		ceiling int64
		wantErr bool
	}{
		{"under ceiling", 99, 100, false},
		{"exactly at ceiling", 100, 100, false},
		{"one byte over", 101, 100, true},
		{"ceiling disabled", 1 << 40, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := SizeCheck(models.FileMetadata{Key: "k", Size: tc.size}, tc.ceiling)
			if (err != nil) != tc.wantErr {
				t.Fatalf("SizeCheck(size=%d, ceiling=%d) = %v", tc.size, tc.ceiling, err)
			}
			if err != nil && etlerr.KindOf(err) != etlerr.KindFileTooLarge {
				t.Errorf("kind = %q, want FileTooLarge", etlerr.KindOf(err))
			}
		})
	}
}

func TestMatchKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"quotes/20250101/*.csv", "quotes/20250101/depth_001.csv", true},
		{"quotes/20250101/*.csv", "quotes/20250101/depth_001.txt", false},
		{"quotes/20250101/*.csv", "quotes/20250102/depth_001.csv", false},
		// * must not cross a path separator
		{"quotes/*.csv", "quotes/20250101/depth.csv", false},
	}
	for _, tc := range cases {
		if got := matchKey(tc.pattern, tc.key); got != tc.want {
			t.Errorf("matchKey(%q, %q) = %v, want %v", tc.pattern, tc.key, got, tc.want)
		}
	}
}

func dirSource(t *testing.T) (*config.Source, string) {
	t.Helper()
	root := t.TempDir()
	for p, body := range map[string]string{
		"quotes/20250101/a.csv": "h\n1\n",
		"quotes/20250101/b.csv": "h\n2\n",
		"quotes/20250101/b.bak": "x",
		"quotes/20250102/c.csv": "h\n3\n",
	} {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &config.Source{Name: "drop", Type: config.SourceTypeFile, FilePath: root}, root
}

func TestDirClientList(t *testing.T) {
	t.Parallel()

	src, _ := dirSource(t)
	c, err := NewDir(src)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	defer c.Close()

	metas, err := c.List(context.Background(), "quotes/20250101/", "quotes/20250101/*.csv")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("got %d objects, want 2", len(metas))
	}
	// ascending by key
	if metas[0].Key != "quotes/20250101/a.csv" || metas[1].Key != "quotes/20250101/b.csv" {
		t.Errorf("keys = %s, %s", metas[0].Key, metas[1].Key)
	}
	if metas[0].Size != 4 {
		t.Errorf("size = %d", metas[0].Size)
	}
}

func TestDirClientListEmptyMatch(t *testing.T) {
	t.Parallel()

	src, _ := dirSource(t)
	c, _ := NewDir(src)
	defer c.Close()

	metas, err := c.List(context.Background(), "quotes/20990101/", "quotes/20990101/*.csv")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("got %d objects, want 0", len(metas))
	}
}

func TestDirClientDownload(t *testing.T) {
	t.Parallel()

	src, _ := dirSource(t)
	c, _ := NewDir(src)
	defer c.Close()

	dest := t.TempDir()
	local, err := c.Download(context.Background(), "quotes/20250101/a.csv", dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	body, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(body) != "h\n1\n" {
		t.Errorf("body = %q", body)
	}

	_, err = c.Download(context.Background(), "quotes/20250101/missing.csv", dest)
	if etlerr.KindOf(err) != etlerr.KindDownload {
		t.Errorf("missing key: kind = %q, want DownloadError", etlerr.KindOf(err))
	}
}

func TestNewDirRejectsMissingPath(t *testing.T) {
	t.Parallel()

	_, err := NewDir(&config.Source{Name: "x", FilePath: "/does/not/exist"})
	if etlerr.KindOf(err) != etlerr.KindConfig {
		t.Errorf("kind = %q, want ConfigError", etlerr.KindOf(err))
	}
}
