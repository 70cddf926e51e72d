package format

import (
	"strings"

	"tlog.app/go/errors"
)

// Compare checks a listing against an expected one line by line,
// ignoring indentation and blank lines.
func Compare(got, want string) error {
	g := lines(got)
	w := lines(want)

	for i := 0; i < len(g) && i < len(w); i++ {
		if g[i] == w[i] {
			continue
		}

		col := 0
		for col < len(g[i]) && col < len(w[i]) && g[i][col] == w[i][col] {
			col++
		}

		return errors.New("line %d differs\nGot:      %s\nExpected: %s\n          %s^^^^", i+1, g[i], w[i], strings.Repeat(" ", col))
	}

	switch {
	case len(g) > len(w):
		return errors.New("line %d: unexpected %q", len(w)+1, g[len(w)])
	case len(g) < len(w):
		return errors.New("line %d: missing %q", len(g)+1, w[len(g)])
	}

	return nil
}

func lines(s string) (r []string) {
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}

		r = append(r, l)
	}

	return r
}
