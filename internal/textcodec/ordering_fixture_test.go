package textcodec

import (
	"bytes"
	"os"
	"sort"
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

type orderingFixture struct {
	Cases []struct {
		Name  string   `yaml:"name"`
		Words []string `yaml:"words"`
	} `yaml:"cases"`
}

// TestEncodeMatchesOrderingFixtures loads a small corpus of expected
// ascending orderings and checks that encoding each word and sorting by
// raw byte comparison reproduces the fixture's order, the same check a
// real index page's byte-wise key comparison performs.
func TestEncodeMatchesOrderingFixtures(t *testing.T) {
	raw, err := os.ReadFile("testdata/ordering.yaml")
	require.NoError(t, err)

	var fixture orderingFixture
	require.NoError(t, yaml.Unmarshal(raw, &fixture))

	for _, c := range fixture.Cases {
		c := c
		t.Run(c.Name, func(t *testing.T) {
			encoded := make([][]byte, len(c.Words))
			for i, w := range c.Words {
				enc, err := Encode(w, SortGeneral, true)
				require.NoError(t, err)
				encoded[i] = enc
			}

			got := append([]string(nil), c.Words...)
			sort.SliceStable(got, func(i, j int) bool {
				return bytes.Compare(encoded[indexOf(c.Words, got[i])], encoded[indexOf(c.Words, got[j])]) < 0
			})

			if !equalSlices(got, c.Words) {
				t.Fatalf("ordering mismatch for %s:\n%s", c.Name, pretty.Sprint(struct{ Want, Got []string }{c.Words, got}))
			}
		})
	}
}

func indexOf(words []string, w string) int {
	for i, v := range words {
		if v == w {
			return i
		}
	}
	return -1
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
