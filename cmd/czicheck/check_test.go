package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrjoshuak/go-czi/compression"
	"github.com/mrjoshuak/go-czi/czi"
)

func TestCheckFileInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.czi")
	data := make([]byte, 1024)
	copy(data, "NOTACZIFILE")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := checkFile(path, czi.DefaultOptions(), false)
	if err != nil {
		t.Fatalf("checkFile() error = %v", err)
	}
	if result.IsValid() {
		t.Error("file with bad magic reported valid")
	}
}

func TestCheckFileMissing(t *testing.T) {
	if _, err := checkFile(filepath.Join(t.TempDir(), "missing.czi"), czi.DefaultOptions(), false); err == nil {
		t.Error("checkFile(missing) succeeded")
	}
}

func TestPrintResult(t *testing.T) {
	result := &Result{
		Filename:    "slide.czi",
		Version:     "1.0",
		Prestitched: true,
		Series: []SeriesSummary{{
			Index:       0,
			PixelType:   czi.Bgr24,
			Levels:      []string{"512x512/1", "256x256/2"},
			Planes:      3,
			Tiles:       5,
			Compression: []compression.Tag{compression.JPEGXR},
		}},
		Checks: []string{"structure", "sample read"},
	}
	result.addWarningf("no XML metadata")

	var buf bytes.Buffer
	printResult(&buf, result)
	out := buf.String()
	for _, want := range []string{
		"slide.czi: OK (version 1.0)",
		"series 0: Bgr24, 3 planes, 5 tiles, levels 512x512/1 256x256/2",
		"[WARNING] no XML metadata",
		"Checks performed: structure, sample read",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "not prestitched") {
		t.Errorf("prestitched file reported as not prestitched:\n%s", out)
	}

	result.Prestitched = false
	buf.Reset()
	printResult(&buf, result)
	if !strings.Contains(buf.String(), "pyramid levels are not prestitched") {
		t.Errorf("output missing prestitch note:\n%s", buf.String())
	}
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reader.yaml")
	if err := os.WriteFile(path, []byte("autostitch: false\nlogLevel: error\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := loadOptions(path, true)
	if err != nil {
		t.Fatalf("loadOptions() error = %v", err)
	}
	if opts.Autostitch {
		t.Error("autostitch not read from config")
	}
	if got := opts.Logger.GetLevel().String(); got != "error" {
		t.Errorf("logger level = %s, want error", got)
	}
	if _, err := loadOptions(filepath.Join(t.TempDir(), "none.yaml"), false); err == nil {
		t.Error("loadOptions(missing) succeeded")
	}
}
