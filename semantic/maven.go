// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package semantic implements ordering of Maven version strings following the
// rules of Maven's ComparableVersion: versions are tokenized on '.' and '-'
// and compared atom by atom, with well-known qualifiers ranked below releases.
package semantic

import (
	"strconv"
	"strings"
)

// Qualifier ranks. Anything not in the table ranks as a GA release.
const (
	rankAlpha     = 1
	rankBeta      = 2
	rankMilestone = 3
	rankRC        = 4
	rankSnapshot  = 5
	rankGA        = 6
	rankSP        = 7
)

var qualifierRanks = map[string]int{
	"alpha":     rankAlpha,
	"beta":      rankBeta,
	"milestone": rankMilestone,
	"m":         rankMilestone,
	"rc":        rankRC,
	"cr":        rankRC,
	"snapshot":  rankSnapshot,
	"ga":        rankGA,
	"final":     rankGA,
	"release":   rankGA,
	"":          rankGA,
	"sp":        rankSP,
}

func qualifierRank(s string) (int, bool) {
	if r, ok := qualifierRanks[strings.ToLower(s)]; ok {
		return r, true
	}
	return rankGA, false
}

// tokenizeMavenVersion splits a version string into atoms on '.' and '-',
// and additionally at digit/non-digit transitions so that "rc1" becomes
// the atoms "rc", "1" just as Maven's ComparableVersion does.
func tokenizeMavenVersion(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-'
	})
	var atoms []string
	for _, p := range parts {
		start := 0
		for i := 1; i < len(p); i++ {
			if isDigit(p[i]) != isDigit(p[i-1]) {
				atoms = append(atoms, p[start:i])
				start = i
			}
		}
		atoms = append(atoms, p[start:])
	}
	return atoms
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// CompareMavenVersions returns -1, 0 or 1 depending on whether a sorts
// before, equal to, or after b under Maven version ordering. The order is
// total: any pair of strings compares deterministically.
func CompareMavenVersions(a, b string) int {
	as := tokenizeMavenVersion(a)
	bs := tokenizeMavenVersion(b)

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := range n {
		var av, bv string
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if c := compareAtoms(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// compareAtoms compares a single pair of version atoms. A missing atom is the
// empty string, which ranks as a numeric zero against numbers and as a GA
// release against qualifiers.
func compareAtoms(a, b string) int {
	an, aNum := atomInt(a)
	bn, bNum := atomInt(b)

	// A missing atom against a qualifier compares as a GA release, so that
	// "1.2.3" sorts above "1.2.3-snapshot" but below "1.2.3-sp".
	if a == "" && !bNum {
		aNum = false
	}
	if b == "" && !aNum {
		bNum = false
	}

	switch {
	case aNum && bNum:
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
		return 0
	case aNum:
		// Numbers sort after qualifiers: 1.2.3 > 1.2-rc1, 1.1 < 1.1.1.
		return 1
	case bNum:
		return -1
	}

	ar, aKnown := qualifierRank(a)
	br, bKnown := qualifierRank(b)
	if ar != br {
		if ar < br {
			return -1
		}
		return 1
	}
	if aKnown && bKnown {
		return 0
	}
	// At least one unknown qualifier at the same rank. Fall back to lexical
	// order to keep the ordering total.
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// atomInt parses an atom as a non-negative integer. The empty atom counts as
// the number zero so that 1.2 and 1.2.0 compare equal.
func atomInt(s string) (int64, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsSnapshot reports whether the version is a Maven snapshot.
func IsSnapshot(v string) bool {
	return strings.HasSuffix(strings.ToUpper(v), "-SNAPSHOT")
}
