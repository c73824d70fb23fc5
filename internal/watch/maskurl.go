package watch

import (
	"net/url"
	"strings"
)

// maskURL redacts credential-bearing query parameters so connection URLs can
// be logged safely. Values keep their first four and last two characters.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<redacted>"
	}
	q := u.Query()
	for key, vals := range q {
		switch strings.ToLower(key) {
		case "authtoken", "token", "access_token":
			for i, v := range vals {
				if v == "" {
					continue
				}
				if len(v) > 6 {
					vals[i] = v[:4] + "..." + v[len(v)-2:]
				} else {
					vals[i] = "..."
				}
			}
			q[key] = vals
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
