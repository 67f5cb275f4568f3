package spec

import (
	"regexp"
	"sort"
	"strings"
)

// OperationRef locates one operation subtree inside a Spec.
type OperationRef struct {
	Path   string
	Method HttpMethod
	Node   map[string]any
}

// Tags returns the operation's trimmed, non-empty tags.
func (r OperationRef) Tags() []string {
	tags := make([]string, 0, 1)
	for _, t := range Strings(r.Node, "tags") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// FilterOption narrows which operations OperationRefs returns.
type FilterOption func(*filterConfig)

type filterConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) FilterOption {
	return func(c *filterConfig) {
		if len(tags) == 0 {
			return
		}
		if c.includeTags == nil {
			c.includeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.includeTags[t] = struct{}{}
		}
	}
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) FilterOption {
	return func(c *filterConfig) {
		if len(tags) == 0 {
			return
		}
		if c.excludeTags == nil {
			c.excludeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.excludeTags[t] = struct{}{}
		}
	}
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) FilterOption {
	return func(c *filterConfig) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[HttpMethod]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[HttpMethod(strings.ToLower(string(m)))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the provided regular expressions. An invalid pattern matches nothing.
func WithPathPatterns(patterns []string) FilterOption {
	return func(c *filterConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// OperationRefs walks paths × methods in a stable order and returns the
// operations that pass the filters.
func (s *Spec) OperationRefs(opts ...FilterOption) []OperationRef {
	cfg := &filterConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	paths := s.Paths()
	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	var out []OperationRef
	for _, p := range pathKeys {
		item := Map(paths[p])
		if item == nil {
			continue
		}
		for _, m := range Methods {
			op := Map(item[string(m)])
			if op == nil {
				continue
			}
			if len(cfg.methods) > 0 {
				if _, ok := cfg.methods[m]; !ok {
					continue
				}
			}
			if len(cfg.pathRes) > 0 {
				matched := false
				for _, re := range cfg.pathRes {
					if re.MatchString(p) {
						matched = true
						break
					}
				}
				if !matched {
					continue
				}
			}
			ref := OperationRef{Path: p, Method: m, Node: op}
			if !allowByTags(ref.Tags(), cfg) {
				continue
			}
			out = append(out, ref)
		}
	}
	return out
}

func allowByTags(tags []string, cfg *filterConfig) bool {
	hasInclude := len(cfg.includeTags) > 0
	if hasInclude {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(cfg.excludeTags) > 0 {
		for _, t := range tags {
			if _, blocked := cfg.excludeTags[t]; blocked {
				return false
			}
		}
	}
	return true
}
