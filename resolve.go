package dirserve

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// target is a request path mapped onto the served file system.
type target struct {
	name     string // fs.FS name, "." for the root
	urlPath  string // cleaned request path as the client sees it
	trailing bool   // request path ended with "/"
}

// resolve maps a request URL path onto a name inside the root. A non-zero
// status means the request must be refused without touching the file system.
func resolve(urlPath string) (target, int) {
	if !strings.HasPrefix(urlPath, "/") || strings.IndexByte(urlPath, 0) >= 0 {
		return target{}, http.StatusBadRequest
	}
	for _, seg := range strings.Split(urlPath, "/") {
		if seg == ".." {
			return target{}, http.StatusForbidden
		}
	}
	cleaned := path.Clean(urlPath)
	name := strings.TrimPrefix(cleaned, "/")
	if name == "" {
		name = "."
	}
	if !fs.ValidPath(name) {
		return target{}, http.StatusBadRequest
	}
	t := target{
		name:     name,
		urlPath:  cleaned,
		trailing: strings.HasSuffix(urlPath, "/"),
	}
	if t.trailing && cleaned != "/" {
		t.urlPath += "/"
	}
	return t, 0
}
