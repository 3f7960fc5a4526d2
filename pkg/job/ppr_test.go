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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awlauria/prrte/internal/errors"
)

func TestParsePPR(t *testing.T) {
	p, err := ParsePPR("2:node")
	require.NoError(t, err)
	assert.Equal(t, 2, p.N)
	assert.Equal(t, PPRNode, p.Keyword)

	p, err = ParsePPR("3:PACKAGE")
	require.NoError(t, err)
	assert.Equal(t, 3, p.N)
	assert.Equal(t, PPRPackage, p.Keyword)

	_, err = ParsePPR("node")
	require.Error(t, err)
	assert.Equal(t, errors.BadParam, errors.KindOf(err))

	_, err = ParsePPR("2:rack")
	require.Error(t, err)
	assert.Equal(t, errors.BadParam, errors.KindOf(err))

	_, err = ParsePPR("x:node")
	require.Error(t, err)
}

func TestParseRankfile(t *testing.T) {
	rf, err := ParseRankfile("rank 0=a slot=0\nrank 1=a slot=1\nrank 2=b slot=0\n")
	require.NoError(t, err)
	require.Len(t, rf.Entries, 3)
	assert.Equal(t, 0, rf.Entries[0].Rank)
	assert.Equal(t, "a", rf.Entries[0].Host)
	assert.Equal(t, []int{0}, rf.Entries[0].Slot.IDs)
	assert.Equal(t, "b", rf.Entries[2].Host)
}

func TestParseRankfileWildcardAndRange(t *testing.T) {
	rf, err := ParseRankfile("rank 0=a slot=*\nrank 1=a slot=0-3\nrank 2=a slot=0,2,4\n")
	require.NoError(t, err)
	require.Len(t, rf.Entries, 3)
	assert.True(t, rf.Entries[0].Slot.Any)
	assert.Equal(t, []int{0, 1, 2, 3}, rf.Entries[1].Slot.IDs)
	assert.Equal(t, []int{0, 2, 4}, rf.Entries[2].Slot.IDs)
}

func TestParseRankfileBadLine(t *testing.T) {
	_, err := ParseRankfile("this is not a rankfile line")
	require.Error(t, err)
	assert.Equal(t, errors.BadParam, errors.KindOf(err))
}
