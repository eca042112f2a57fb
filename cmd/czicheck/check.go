package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mrjoshuak/go-czi/compression"
	"github.com/mrjoshuak/go-czi/czi"
)

const (
	severityError   = "error"
	severityWarning = "warning"
)

// Issue is a single problem found in a file.
type Issue struct {
	Severity string
	Message  string
}

// SeriesSummary describes one series of a file.
type SeriesSummary struct {
	Index       int
	PixelType   czi.PixelType
	Levels      []string
	Planes      int
	Tiles       int
	Compression []compression.Tag
}

// Result collects everything checked for one file.
type Result struct {
	Filename    string
	Version     string
	Prestitched bool
	Series      []SeriesSummary
	Issues      []Issue
	Checks      []string
}

// IsValid reports whether no error-level issue was found.
func (r *Result) IsValid() bool {
	for _, issue := range r.Issues {
		if issue.Severity == severityError {
			return false
		}
	}
	return true
}

func (r *Result) addErrorf(format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: severityError, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) addWarningf(format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: severityWarning, Message: fmt.Sprintf(format, args...)})
}

// checkFile opens filename and validates it. Format errors that prevent
// opening are reported as issues; only I/O failures return an error.
func checkFile(filename string, opts czi.Options, strict bool) (*Result, error) {
	return check(filename, func() (*czi.Reader, error) { return czi.Open(filename, opts) }, strict)
}

func check(name string, open func() (*czi.Reader, error), strict bool) (*Result, error) {
	result := &Result{Filename: name}

	result.Checks = append(result.Checks, "structure")
	r, err := open()
	if err != nil {
		var fe *czi.FormatError
		switch {
		case errors.Is(err, czi.ErrInvalidMagic),
			errors.As(err, &fe),
			errors.Is(err, czi.ErrUnsupportedPixelType),
			errors.Is(err, czi.ErrMixedPixelTypes),
			errors.Is(err, czi.ErrEmptyDirectory),
			errors.Is(err, compression.ErrUnsupportedCompression):
			result.addErrorf("%v", err)
			return result, nil
		}
		return nil, err
	}
	defer r.Close()

	if h := r.Header(); h != nil {
		result.Version = fmt.Sprintf("%d.%d", h.Major, h.Minor)
		if h.UpdatePending {
			result.addWarningf("file header has an update pending")
		}
	}
	if r.MetadataXML() == "" {
		result.addWarningf("no XML metadata")
	}

	result.Prestitched = r.Index().Prestitched()
	for _, s := range r.AllSeries() {
		result.Series = append(result.Series, summarize(s))
	}

	ctx := context.Background()
	if strict {
		result.Checks = append(result.Checks, "decode all tiles")
		failures, err := r.VerifyTiles(ctx)
		if err != nil {
			return nil, err
		}
		for _, f := range failures {
			result.addErrorf("series %d level %d sub-block %d (%s): %v",
				f.Series, f.Level, f.Entry.ID, f.Entry.Compression, f.Err)
		}
		return result, nil
	}

	result.Checks = append(result.Checks, "sample read")
	for _, s := range r.AllSeries() {
		last := s.ResolutionCount() - 1
		key, err := s.PlaneKey(0)
		if err != nil {
			result.addErrorf("series %d: %v", s.Index, err)
			continue
		}
		if _, err := r.ReadPlane(ctx, s.Index, last, key); err != nil {
			result.addErrorf("series %d: reading level %d: %v", s.Index, last, err)
		}
	}
	return result, nil
}

func summarize(s *czi.Series) SeriesSummary {
	sum := SeriesSummary{
		Index:     s.Index,
		PixelType: s.PixelType,
		Planes:    s.ImageCount(),
	}
	seen := map[compression.Tag]bool{}
	for _, lv := range s.Levels {
		sum.Levels = append(sum.Levels, fmt.Sprintf("%dx%d/%d", lv.Width, lv.Height, lv.Downscale))
		sum.Tiles += len(lv.Entries)
		for _, e := range lv.Entries {
			if !seen[e.Compression] {
				seen[e.Compression] = true
				sum.Compression = append(sum.Compression, e.Compression)
			}
		}
	}
	return sum
}

func printResult(w io.Writer, result *Result) {
	status := "OK"
	if !result.IsValid() {
		status = "INVALID"
	}
	fmt.Fprintf(w, "%s: %s", result.Filename, status)
	if result.Version != "" {
		fmt.Fprintf(w, " (version %s)", result.Version)
	}
	fmt.Fprintln(w)

	for _, s := range result.Series {
		tags := make([]string, len(s.Compression))
		for i, t := range s.Compression {
			tags[i] = t.String()
		}
		fmt.Fprintf(w, "  series %d: %s, %d planes, %d tiles, levels %s, compression %s\n",
			s.Index, s.PixelType, s.Planes, s.Tiles,
			strings.Join(s.Levels, " "), strings.Join(tags, ","))
	}
	if len(result.Series) > 0 && !result.Prestitched {
		fmt.Fprintln(w, "  pyramid levels are not prestitched")
	}
	for _, issue := range result.Issues {
		fmt.Fprintf(w, "  [%s] %s\n", strings.ToUpper(issue.Severity), issue.Message)
	}
	if len(result.Issues) > 0 {
		fmt.Fprintf(w, "  Checks performed: %s\n", strings.Join(result.Checks, ", "))
	}
}
