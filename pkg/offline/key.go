package offline

import (
	"net/http"
	"slices"
	"strings"
)

// CanonicalKey identifies a request in the cache: the method and the URL
// without its fragment, followed by the value of each vary header.
func CanonicalKey(req *http.Request, varyHeaders []string) string {
	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""

	var b strings.Builder
	b.WriteString(strings.ToUpper(req.Method))
	b.WriteByte(' ')
	b.WriteString(u.String())

	names := make([]string, 0, len(varyHeaders))
	for _, h := range varyHeaders {
		names = append(names, http.CanonicalHeaderKey(strings.TrimSpace(h)))
	}
	slices.Sort(names)
	for _, name := range slices.Compact(names) {
		if name == "" {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(req.Header.Values(name), ","))
	}
	return b.String()
}
