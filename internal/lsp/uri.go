package lsp

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Editors address documents by file:// URI; the rest of rescriptls
// (compiler log entries, the action store, the fix engine) works with
// native filesystem paths. These helpers translate between the two,
// including the Windows shape where the URI path carries a leading
// slash before the drive letter (file:///C:/proj/App.res).

func uriToPath(uri string) string {
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return ""
	}
	path := parsed.Path
	if parsed.Scheme == "" {
		path = uri
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' && isDriveLetter(path[1]) {
		path = path[1:]
	}
	path = filepath.FromSlash(path)
	if hasDrivePrefix(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

func pathToURI(path string) string {
	if path == "" {
		return ""
	}
	slashed := filepath.ToSlash(path)
	if hasDrivePrefix(path) {
		slashed = "/" + slashed
	} else if !strings.HasPrefix(slashed, "/") {
		if abs, err := filepath.Abs(path); err == nil {
			slashed = filepath.ToSlash(abs)
		}
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

func hasDrivePrefix(path string) bool {
	return len(path) >= 2 && path[1] == ':' && isDriveLetter(path[0])
}

func isDriveLetter(b byte) bool {
	return ('A' <= b && b <= 'Z') || ('a' <= b && b <= 'z')
}
