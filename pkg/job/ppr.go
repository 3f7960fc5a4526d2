// Copyright The PRRTE-Go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package job

import (
	"strconv"
	"strings"

	"github.com/awlauria/prrte/internal/errors"
)

// PPRKeyword is the resource keyword after the colon in a PPR string
// (spec §6 "PPR string").
type PPRKeyword int

const (
	PPRNode PPRKeyword = iota
	PPRPackage
)

// PPR is a parsed "processes per resource" pattern.
type PPR struct {
	N       int
	Keyword PPRKeyword
}

// ParsePPR parses "N:node" or "N:package" (case-insensitive keyword).
// Anything else fails with BAD_PARAM (spec §6).
func ParsePPR(s string) (*PPR, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, errors.New(errors.BadParam, "malformed PPR string %q: expected N:node or N:package", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || n <= 0 {
		return nil, errors.New(errors.BadParam, "malformed PPR string %q: N must be a positive integer", s)
	}
	switch strings.ToLower(strings.TrimSpace(parts[1])) {
	case "node":
		return &PPR{N: n, Keyword: PPRNode}, nil
	case "package":
		return &PPR{N: n, Keyword: PPRPackage}, nil
	default:
		return nil, errors.New(errors.BadParam, "malformed PPR string %q: keyword must be node or package", s)
	}
}
