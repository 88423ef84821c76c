package constraint

import (
	"fmt"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Parse converts a textual version expression into a Constraint.
//
// Supported forms:
//
//	*                unconstrained
//	1.2.3            exact version
//	^1.2             caret range (>=1.2,<2.0)
//	~1.2.3           tilde range (>=1.2.3,<1.3.0)
//	1.2.*            wildcard range (>=1.2,<1.3)
//	>=3.9,<3.10      comma-joined comparators (>=, >, <=, <, =, ==)
//	git+URL[@rev]    git source reference
//	http(s)://URL    direct URL source reference
func Parse(text string) (Constraint, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "*" {
		return Any(), nil
	}

	if src, ok := parseSourceText(text); ok {
		return FromSource(src), nil
	}

	if strings.HasPrefix(text, "^") {
		return parseCaret(text)
	}
	if strings.HasPrefix(text, "~") {
		return parseTilde(text)
	}
	if strings.Contains(text, "*") {
		return parseWildcard(text)
	}
	if strings.ContainsAny(text, "><=") {
		return parseComparators(text)
	}

	return Exact(text)
}

// ParseEntry converts a raw manifest dependency value into a Constraint. The
// value is either a constraint string or a table carrying a source reference
// ({git = ..., rev = ...}, {url = ...}, {path = ...}) or a pinned
// {version = ...}. Platform-variant tables must be resolved before calling.
func ParseEntry(value any) (Constraint, error) {
	switch v := value.(type) {
	case string:
		return Parse(v)
	case map[string]any:
		return parseTable(v)
	default:
		return Constraint{}, &MalformedConstraintError{
			Text:   fmt.Sprintf("%v", value),
			Reason: fmt.Sprintf("unsupported dependency entry type %T", value),
		}
	}
}

func parseTable(table map[string]any) (Constraint, error) {
	rev, _ := table["rev"].(string)
	for _, kind := range []SourceKind{SourceGit, SourceURL, SourcePath} {
		loc, ok := table[string(kind)].(string)
		if !ok {
			continue
		}
		return FromSource(Source{Kind: kind, Location: loc, Revision: rev}), nil
	}
	if v, ok := table["version"].(string); ok {
		return Parse(v)
	}
	return Constraint{}, &MalformedConstraintError{
		Text:   fmt.Sprintf("%v", table),
		Reason: "table has no version, git, url or path key",
	}
}

func parseSourceText(text string) (Source, bool) {
	loc := text
	rev := ""
	if at := strings.LastIndex(loc, "@"); at > 0 && !strings.Contains(loc[at:], "/") {
		loc, rev = loc[:at], loc[at+1:]
	}
	switch {
	case strings.HasPrefix(loc, "git+"):
		return Source{Kind: SourceGit, Location: strings.TrimPrefix(loc, "git+"), Revision: rev}, true
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return Source{Kind: SourceURL, Location: loc, Revision: rev}, true
	}
	return Source{}, false
}

func parseCaret(text string) (Constraint, error) {
	base := strings.TrimPrefix(text, "^")
	segs, err := numericSegments(text, base)
	if err != nil {
		return Constraint{}, err
	}
	// Caret bumps the leftmost non-zero segment.
	bump := len(segs) - 1
	for i, s := range segs {
		if s != 0 {
			bump = i
			break
		}
	}
	return boundedRange(text, base, bumpSegments(segs, bump))
}

func parseTilde(text string) (Constraint, error) {
	base := strings.TrimPrefix(text, "~")
	segs, err := numericSegments(text, base)
	if err != nil {
		return Constraint{}, err
	}
	// Tilde freezes everything past the minor segment.
	bump := len(segs) - 1
	if bump > 1 {
		bump = 1
	}
	return boundedRange(text, base, bumpSegments(segs, bump))
}

func parseWildcard(text string) (Constraint, error) {
	if !strings.HasSuffix(text, ".*") {
		return Constraint{}, &MalformedConstraintError{
			Text:   text,
			Reason: "wildcard is only allowed as the trailing segment",
		}
	}
	base := strings.TrimSuffix(text, ".*")
	segs, err := numericSegments(text, base)
	if err != nil {
		return Constraint{}, err
	}
	return boundedRange(text, base, bumpSegments(segs, len(segs)-1))
}

func parseComparators(text string) (Constraint, error) {
	out := Any()
	for _, atom := range strings.Split(text, ",") {
		atom = strings.TrimSpace(atom)
		c, err := parseComparator(text, atom)
		if err != nil {
			return Constraint{}, err
		}
		out = Intersect(out, c)
	}
	return out, nil
}

func parseComparator(full, atom string) (Constraint, error) {
	for _, op := range []string{">=", "<=", "==", ">", "<", "="} {
		if !strings.HasPrefix(atom, op) {
			continue
		}
		vtext := strings.TrimSpace(strings.TrimPrefix(atom, op))
		v, err := goversion.NewVersion(vtext)
		if err != nil {
			return Constraint{}, &MalformedConstraintError{Text: full, Reason: err.Error()}
		}
		switch op {
		case "=", "==":
			return Constraint{kind: KindExact, exact: v, exactText: vtext}, nil
		case ">=", ">":
			return Constraint{kind: KindRange, min: v, minText: vtext, incMin: op == ">="}, nil
		default:
			return Constraint{kind: KindRange, max: v, maxText: vtext, incMax: op == "<="}, nil
		}
	}
	return Constraint{}, &MalformedConstraintError{
		Text:   full,
		Reason: fmt.Sprintf("unsupported comparator %q", atom),
	}
}

// numericSegments splits the numeric core of a shorthand expression, keeping
// the author's segment count so rendered bounds match the input's precision.
func numericSegments(full, base string) ([]int64, error) {
	if base == "" {
		return nil, &MalformedConstraintError{Text: full, Reason: "missing version"}
	}
	parts := strings.Split(base, ".")
	segs := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, &MalformedConstraintError{
				Text:   full,
				Reason: fmt.Sprintf("non-numeric segment %q", p),
			}
		}
		segs = append(segs, n)
	}
	return segs, nil
}

// bumpSegments increments segs[bump] and zeroes everything after it,
// returning the rendered upper bound.
func bumpSegments(segs []int64, bump int) string {
	out := make([]string, len(segs))
	for i := range segs {
		switch {
		case i < bump:
			out[i] = strconv.FormatInt(segs[i], 10)
		case i == bump:
			out[i] = strconv.FormatInt(segs[i]+1, 10)
		default:
			out[i] = "0"
		}
	}
	return strings.Join(out, ".")
}

func boundedRange(full, minText, maxText string) (Constraint, error) {
	minV, err := goversion.NewVersion(minText)
	if err != nil {
		return Constraint{}, &MalformedConstraintError{Text: full, Reason: err.Error()}
	}
	maxV, err := goversion.NewVersion(maxText)
	if err != nil {
		return Constraint{}, &MalformedConstraintError{Text: full, Reason: err.Error()}
	}
	return Constraint{
		kind:    KindRange,
		min:     minV,
		minText: minText,
		incMin:  true,
		max:     maxV,
		maxText: maxText,
	}, nil
}
