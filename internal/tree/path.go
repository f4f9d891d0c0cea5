package tree

import (
	"strconv"
	"strings"

	"autopilot/internal/model"
)

// Step is one hop from an entity into one of its lists.
type Step struct {
	List  model.ListKey
	Index int
}

// Path addresses an entity by the list hops from the script root.
// Paths are recomputed from the current tree shape; they are not stable across structural edits.
type Path []Step

// RootPath addresses the script entity.
var RootPath = Path{}

func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range p {
		b.WriteByte('/')
		b.WriteString(string(s.List))
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(s.Index))
	}
	return b.String()
}

func (p Path) IsRoot() bool { return len(p) == 0 }

// Owner returns the list that holds the entity at p. The root has no owner.
func (p Path) Owner() (ListRef, bool) {
	if len(p) == 0 {
		return ListRef{}, false
	}
	last := p[len(p)-1]
	return ListRef{Owner: p[:len(p)-1].clone(), Key: last.List}, true
}

// Index returns the position of the entity within its owner list, or -1 for the root.
func (p Path) Index() int {
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1].Index
}

func (p Path) List(key model.ListKey) ListRef {
	return ListRef{Owner: p.clone(), Key: key}
}

func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Path) clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// ListRef addresses an entity list: the owning entity's path plus the list key.
type ListRef struct {
	Owner Path
	Key   model.ListKey
}

func (r ListRef) String() string {
	if r.Key == "" {
		return ""
	}
	if len(r.Owner) == 0 {
		return "/" + string(r.Key)
	}
	return r.Owner.String() + "/" + string(r.Key)
}

func (r ListRef) IsZero() bool { return r.Key == "" }

// Item returns the path of the i-th item of the list.
func (r ListRef) Item(i int) Path {
	out := make(Path, 0, len(r.Owner)+1)
	out = append(out, r.Owner...)
	return append(out, Step{List: r.Key, Index: i})
}

func (r ListRef) Equal(o ListRef) bool {
	return r.Key == o.Key && r.Owner.Equal(o.Owner)
}

func splitSegments(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "/" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "/") {
		return nil, ErrInvalidPath
	}
	parts := strings.Split(strings.TrimSuffix(s[1:], "/"), "/")
	for _, p := range parts {
		if p == "" {
			return nil, ErrInvalidPath
		}
	}
	return parts, nil
}

func parseSteps(parts []string) (Path, error) {
	if len(parts)%2 != 0 {
		return nil, ErrInvalidPath
	}
	out := make(Path, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		key, err := model.ParseListKey(parts[i])
		if err != nil {
			return nil, ErrInvalidPath
		}
		idx, err := strconv.Atoi(parts[i+1])
		if err != nil || idx < 0 {
			return nil, ErrInvalidPath
		}
		out = append(out, Step{List: key, Index: idx})
	}
	return out, nil
}

// ParsePath parses an entity path such as "/contexts/1/children/0".
func ParsePath(s string) (Path, error) {
	parts, err := splitSegments(s)
	if err != nil {
		return nil, err
	}
	return parseSteps(parts)
}

// ParseListRef parses a list path such as "/contexts/1/children".
func ParseListRef(s string) (ListRef, error) {
	parts, err := splitSegments(s)
	if err != nil {
		return ListRef{}, err
	}
	if len(parts)%2 != 1 {
		return ListRef{}, ErrInvalidPath
	}
	owner, err := parseSteps(parts[:len(parts)-1])
	if err != nil {
		return ListRef{}, err
	}
	key, err := model.ParseListKey(parts[len(parts)-1])
	if err != nil {
		return ListRef{}, ErrInvalidPath
	}
	return ListRef{Owner: owner, Key: key}, nil
}
