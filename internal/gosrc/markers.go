package gosrc

import (
	"fmt"
	goast "go/ast"
	"strconv"
	"strings"

	"github.com/funvibe/given/internal/config"
)

// markers are the //given: comment directives of one declaration or statement.
type markers struct {
	provide   bool
	entry     bool
	preferred bool
	priority  int

	requestAll bool
	requested  []string
	optional   []string
	patterns   []string
}

func (m markers) isRequested(name string) bool {
	return m.requestAll || contains(m.requested, name)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// parseMarkers reads directives such as
//
//	//given:provide
//	//given:preferred 2
//	//given:requested log store
//	//given:optional store
//	//given:pattern T
//
// from the comment groups. Comments without the prefix are ignored.
func parseMarkers(groups ...*goast.CommentGroup) (markers, error) {
	var m markers
	for _, g := range groups {
		if g == nil {
			continue
		}
		for _, c := range g.List {
			text, ok := strings.CutPrefix(c.Text, "//"+config.GoMarkerPrefix)
			if !ok {
				continue
			}
			fields := strings.Fields(text)
			if len(fields) == 0 {
				return m, fmt.Errorf("empty directive %q", c.Text)
			}
			name, args := fields[0], fields[1:]
			switch name {
			case config.ProvideMarker:
				m.provide = true
			case config.EntryMarker:
				m.entry = true
			case config.PreferredMarker:
				m.preferred = true
				m.priority = 1
				if len(args) > 0 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return m, fmt.Errorf("%s: priority %q is not a number", name, args[0])
					}
					m.priority = n
				}
			case config.RequestedMarker:
				if len(args) == 0 {
					m.requestAll = true
				}
				m.requested = append(m.requested, args...)
			case config.OptionalMarker:
				if len(args) == 0 {
					return m, fmt.Errorf("%s needs parameter names", name)
				}
				m.optional = append(m.optional, args...)
			case config.PatternMarker:
				if len(args) == 0 {
					return m, fmt.Errorf("%s needs type parameter names", name)
				}
				m.patterns = append(m.patterns, args...)
			default:
				return m, fmt.Errorf("unknown directive %q", name)
			}
		}
	}
	return m, nil
}

// fieldOptions are the options of a `given:"..."` struct tag.
type fieldOptions struct {
	requested bool
	optional  bool
	provide   bool
}

func parseFieldTag(tag string) (fieldOptions, error) {
	var o fieldOptions
	for _, opt := range strings.Split(tag, ",") {
		switch strings.TrimSpace(opt) {
		case config.RequestedMarker:
			o.requested = true
		case config.OptionalMarker:
			o.optional = true
		case config.ProvideMarker:
			o.provide = true
		case "":
		default:
			return o, fmt.Errorf("unknown field option %q", opt)
		}
	}
	return o, nil
}
