// Package filex inspects local files before they are sent to storage.
package filex

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// sniffLen is the prefix http.DetectContentType looks at.
const sniffLen = 512

// Info describes a local file the way the upload endpoint expects it.
type Info struct {
	Name        string
	Size        int64
	ContentType string
}

// Inspect stats path and guesses its content type, first from the extension
// and then by sniffing the first bytes.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return Info{}, fmt.Errorf("%s is a directory", path)
	}

	info := Info{Name: filepath.Base(path), Size: st.Size()}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		info.ContentType = ct
		return info, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Info{}, fmt.Errorf("read %s: %w", path, err)
	}
	info.ContentType = http.DetectContentType(head[:n])
	return info, nil
}
