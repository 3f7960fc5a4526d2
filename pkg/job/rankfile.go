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

// SlotSpec is a parsed rankfile slot= value: either "any" (slot=*), or
// an explicit set of logical hwthread IDs built from a comma-separated
// list and/or an "a-b" range (spec §6).
type SlotSpec struct {
	Any bool
	IDs []int
}

// RankfileEntry is one "rank N=host slot=<slotspec>" line (spec §6,
// scenario 5 of §8).
type RankfileEntry struct {
	Rank int
	Host string
	Slot SlotSpec
}

// Rankfile is the fully parsed rankfile used by the by-user mapper.
type Rankfile struct {
	Entries []RankfileEntry
}

// ParseRankfile parses the ByUser rankfile format. Unknown lines fail
// with BAD_PARAM.
func ParseRankfile(data string) (*Rankfile, error) {
	rf := &Rankfile{}
	for lineNo, raw := range strings.Split(data, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseRankfileLine(line)
		if err != nil {
			return nil, errors.New(errors.BadParam, "rankfile line %d: %v", lineNo+1, err)
		}
		rf.Entries = append(rf.Entries, *entry)
	}
	return rf, nil
}

func parseRankfileLine(line string) (*RankfileEntry, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "rank" {
		return nil, errors.New(errors.BadParam, "expected 'rank N=host slot=<spec>', got %q", line)
	}

	rankHost := strings.SplitN(fields[1], "=", 2)
	if len(rankHost) != 2 {
		return nil, errors.New(errors.BadParam, "expected 'N=host', got %q", fields[1])
	}
	rank, err := strconv.Atoi(rankHost[0])
	if err != nil {
		return nil, errors.New(errors.BadParam, "expected integer rank, got %q", rankHost[0])
	}
	host := rankHost[1]
	if host == "" {
		return nil, errors.New(errors.BadParam, "empty host in %q", fields[1])
	}

	slotKV := strings.SplitN(fields[2], "=", 2)
	if len(slotKV) != 2 || slotKV[0] != "slot" {
		return nil, errors.New(errors.BadParam, "expected 'slot=<spec>', got %q", fields[2])
	}
	slot, err := parseSlotSpec(slotKV[1])
	if err != nil {
		return nil, err
	}

	return &RankfileEntry{Rank: rank, Host: host, Slot: slot}, nil
}

func parseSlotSpec(s string) (SlotSpec, error) {
	if s == "*" {
		return SlotSpec{Any: true}, nil
	}

	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			if len(bounds) != 2 {
				return SlotSpec{}, errors.New(errors.BadParam, "malformed slot range %q", part)
			}
			lo, errLo := strconv.Atoi(bounds[0])
			hi, errHi := strconv.Atoi(bounds[1])
			if errLo != nil || errHi != nil || hi < lo {
				return SlotSpec{}, errors.New(errors.BadParam, "malformed slot range %q", part)
			}
			for i := lo; i <= hi; i++ {
				ids = append(ids, i)
			}
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return SlotSpec{}, errors.New(errors.BadParam, "malformed slot id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return SlotSpec{}, errors.New(errors.BadParam, "empty slot spec")
	}
	return SlotSpec{IDs: ids}, nil
}
