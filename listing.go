package dirserve

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"
)

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE HTML>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Directory listing for {{.Title}}</title>
</head>
<body>
<h1>Directory listing for {{.Title}}</h1>
<hr>
<ul>
{{range .Entries}}<li><a href="{{.Href}}">{{.Display}}</a></li>
{{end}}</ul>
<hr>
</body>
</html>
`))

type listingEntry struct {
	Href    string
	Display string
}

// listDir renders the HTML index for directory name, shown to the client as
// title.
func listDir(fsys fs.FS, name, title string) ([]byte, error) {
	ents, err := fs.ReadDir(fsys, name)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ents, func(i, j int) bool {
		return strings.ToLower(ents[i].Name()) < strings.ToLower(ents[j].Name())
	})
	entries := make([]listingEntry, 0, len(ents))
	for _, e := range ents {
		display := e.Name()
		href := url.PathEscape(e.Name())
		isDir := e.IsDir()
		symlink := e.Type()&fs.ModeSymlink != 0
		if symlink {
			if info, err := fs.Stat(fsys, path.Join(name, e.Name())); err == nil {
				isDir = info.IsDir()
			}
		}
		if isDir {
			display += "/"
			href += "/"
		}
		if symlink {
			display = e.Name() + "@"
		}
		entries = append(entries, listingEntry{Href: href, Display: display})
	}
	var buf bytes.Buffer
	err = listingTemplate.Execute(&buf, struct {
		Title   string
		Entries []listingEntry
	}{Title: title, Entries: entries})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
