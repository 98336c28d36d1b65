package stub

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects recorded requests. It uses the same rules as an exchange's
// request pattern.
type Filter = Request

// Validate checks that a request pattern can be evaluated.
func (r *Request) Validate() error {
	if r.Path != "" && !doublestar.ValidatePattern(r.Path) {
		return fmt.Errorf("invalid path pattern %q", r.Path)
	}
	return nil
}

// Validate checks that an exchange can be stored and served.
func (ex *Exchange) Validate() error {
	if err := ex.Request.Validate(); err != nil {
		return err
	}
	if ex.Delay < 0 {
		return fmt.Errorf("negative delay %d", ex.Delay)
	}
	if s := ex.Response.Status; s != 0 && (s < 100 || s > 999) {
		return fmt.Errorf("invalid status code %d", s)
	}
	return nil
}

// Matches reports whether req satisfies every constraint set on the pattern r.
func (r *Request) Matches(req *Request) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, req.Method) {
		return false
	}
	if r.Path != "" && !matchPath(r.Path, req.Path) {
		return false
	}
	if !containsAll(req.Params, r.Params) {
		return false
	}
	if !containsAll(req.Headers, r.Headers) {
		return false
	}
	if r.BodyType != "" && !strings.HasPrefix(strings.ToLower(req.BodyType), strings.ToLower(r.BodyType)) {
		return false
	}
	if r.Body != "" && r.Body != req.Body {
		return false
	}
	return true
}

func matchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

// containsAll reports whether every wanted param appears in have with the
// same value. Names compare case-insensitively.
func containsAll(have, want []Param) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if strings.EqualFold(h.Name, w.Name) && h.Value == w.Value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
