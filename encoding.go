package dirserve

import (
	"sort"
	"strings"
)

type encodeInfo struct {
	ext    string
	encode string
	order  int
}

var sortorder = map[string]encodeInfo{
	// brotli vs zstd: which is winner?
	"br":       {ext: ".br", encode: "br", order: 1},
	"zstd":     {ext: ".zst", encode: "zstd", order: 2},
	"gzip":     {ext: ".gz", encode: "gzip", order: 3},
	"deflate":  {ext: ".deflate", encode: "deflate", order: 4},
	"compress": {ext: ".Z", encode: "compress", order: 5},
}

// SidecarExt reports whether ext names a precompressed sidecar.
func SidecarExt(ext string) bool {
	for _, v := range sortorder {
		if v.ext == ext {
			return true
		}
	}
	return false
}

// accepts returns the known encodings of an Accept-Encoding header in
// server preference order. Quality values are ignored, except that q=0
// drops the encoding.
func accepts(accept string) []encodeInfo {
	res := []encodeInfo{}
	seen := map[string]bool{}
	for _, v := range strings.Split(accept, ",") {
		vv := strings.SplitN(v, ";", 2)
		name := strings.ToLower(strings.TrimSpace(vv[0]))
		if len(vv) == 2 && rejected(vv[1]) {
			continue
		}
		if ei, ok := sortorder[name]; ok && !seen[name] {
			seen[name] = true
			res = append(res, ei)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].order < res[j].order
	})
	return res
}

func rejected(params string) bool {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.TrimSpace(k) != "q" {
			continue
		}
		v = strings.TrimRight(strings.TrimSpace(v), "0")
		return v == "" || v == "0." || v == "0"
	}
	return false
}
