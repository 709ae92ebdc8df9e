package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vlmocr/vlmocr/internal/common"
)

const (
	popplerExecutable = "pdftoppm"
	pagePrefix        = "page"
)

// Poppler renders PDF pages by shelling out to pdftoppm.
type Poppler struct{}

func detectPoppler() (*Poppler, bool) {
	if _, err := exec.LookPath(popplerExecutable); err != nil {
		return nil, false
	}
	return &Poppler{}, true
}

// Name implements Backend.
func (p *Poppler) Name() string { return "poppler" }

// RenderPages implements Backend. Pages are written as JPEG files into a
// temporary directory and read back in page order.
func (p *Poppler) RenderPages(ctx context.Context, pdfPath string, dpi int) ([][]byte, error) {
	if dpi <= 0 {
		dpi = common.DefaultDPI
	}

	workDir, err := os.MkdirTemp("", "vlmocr-render-*")
	if err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	prefix := filepath.Join(workDir, pagePrefix)
	args := []string{"-jpeg", "-r", strconv.Itoa(dpi), pdfPath, prefix}
	cmd := exec.CommandContext(ctx, popplerExecutable, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	matches, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", pdfPath)
	}
	sortByPageNumber(matches)

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m) // #nosec G304 - file path produced by pdftoppm in our temp dir
		if err != nil {
			return nil, fmt.Errorf("read rendered page: %w", err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}

// sortByPageNumber orders rendered filenames by the numeric page suffix
// pdftoppm appends ("page-1.jpg", "page-02.jpg", ...). Lexicographic order
// is wrong once a document passes nine pages.
func sortByPageNumber(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		return pageNumberFromName(paths[i]) < pageNumberFromName(paths[j])
	})
}

func pageNumberFromName(path string) int {
	base := filepath.Base(path)
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	number := strings.TrimSuffix(base[idx+1:], filepath.Ext(base))
	n, err := strconv.Atoi(number)
	if err != nil {
		return 0
	}
	return n
}
