package evidence

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

const filePrefix = "/files/evidence/"

// FileURL builds the public path of an uploaded evidence file. The name is
// cleaned by SafeName and path-escaped so the URL stays a single codec token.
func FileURL(id int64, name string) string {
	return filePrefix + strconv.FormatInt(id, 10) + "/" + url.PathEscape(SafeName(name))
}

// SafeName keeps only the extension dot of a file name. Dates such as
// "12.5.2024" would otherwise read as an "N.M." entry marker.
func SafeName(name string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stem = strings.ReplaceAll(stem, ".", "-")
	if stem == "" {
		stem = "file"
	}
	return stem + ext
}

// FileID extracts the numeric file id from a path built by FileURL.
func FileID(u string) (int64, bool) {
	rest, ok := strings.CutPrefix(u, filePrefix)
	if !ok {
		return 0, false
	}
	idStr, _, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
