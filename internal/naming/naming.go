// Package naming derives filesystem-safe output basenames for developed images.
package naming

import (
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const baselinePrefix = "developed"

// Sanitize replaces every code point outside [A-Za-z0-9] with a single
// underscore. Combining marks are separate code points, so "cafe\u0301"
// becomes "cafe_" while "caf\u00e9" becomes "caf_".
//
// The mapping is lossy: "a b" and "a-b" both become "a_b".
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// OutputBase returns the basename (no extension) for developing image with
// the given style. An empty style name selects the baseline development.
func OutputBase(image, style string) string {
	if style == "" {
		return baselinePrefix + "_" + Sanitize(image)
	}
	return Sanitize(style) + "_" + Sanitize(image)
}

// OutputCollisions returns the output basenames that more than one cell of
// the images x (baseline + styles) matrix would write. Members are labelled
// by image for baseline cells and "style: image" for styled cells, sorted.
// A style named "developed" collides with the baseline this way.
func OutputCollisions(images, styles []string) map[string][]string {
	groups := make(map[string][]string)
	add := func(base, label string) {
		groups[base] = append(groups[base], label)
	}

	for _, img := range images {
		add(OutputBase(img, ""), img)
	}
	for _, st := range styles {
		for _, img := range images {
			add(OutputBase(img, st), st+": "+img)
		}
	}

	out := make(map[string][]string)
	for base, members := range groups {
		if len(members) > 1 {
			sort.Strings(members)
			out[base] = members
		}
	}
	return out
}

// Lookalikes groups names that differ only in Unicode composition, such as
// a precomposed and a decomposed accent. They render identically but
// produce different output names. Groups are keyed by the NFC form.
func Lookalikes(names []string) map[string][]string {
	groups := make(map[string][]string)
	for _, n := range names {
		k := norm.NFC.String(n)
		if !slices.Contains(groups[k], n) {
			groups[k] = append(groups[k], n)
		}
	}

	out := make(map[string][]string)
	for k, members := range groups {
		if len(members) > 1 {
			sort.Strings(members)
			out[k] = members
		}
	}
	return out
}
