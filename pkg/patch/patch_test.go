package patch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApply_SetNested(t *testing.T) {
	out, err := Apply(Document{}, Patch{
		Set: map[string]any{"brief.avatar.age_range": "30-40"},
	})
	require.NoError(t, err)

	brief := out["brief"].(map[string]any)
	avatar := brief["avatar"].(map[string]any)
	require.Equal(t, "30-40", avatar["age_range"])
}

func TestApply_UnsetMissing(t *testing.T) {
	doc := Document{"a": map[string]any{"b": 1}}
	_, err := Apply(doc, Patch{Unset: []string{"a.c", "x.y"}})
	require.NoError(t, err)
}

func TestApply_ThroughScalarFails(t *testing.T) {
	_, err := Apply(Document{"niche": "fitness"}, Patch{Set: map[string]any{"niche.name": "x"}})
	require.Error(t, err)
}

func TestMerge_LaterWins(t *testing.T) {
	out := Merge(
		Patch{Set: map[string]any{"a.b": 1}, Unset: []string{"c"}},
		Patch{Set: map[string]any{"a.b": 2}, Unset: []string{"c", "d"}},
	)
	require.Equal(t, 2, out.Set["a.b"])
	require.Equal(t, []string{"c", "d"}, out.Unset)
}

func TestParse_DecodesYAMLValues(t *testing.T) {
	p, err := Parse([]string{"target_price=497", "niche=Fitness", "faqs=[a, b]", "notes="}, []string{" reviews "})
	require.NoError(t, err)
	require.Equal(t, 497, p.Set["target_price"])
	require.Equal(t, "Fitness", p.Set["niche"])
	require.Equal(t, []any{"a", "b"}, p.Set["faqs"])
	require.Equal(t, "", p.Set["notes"])
	require.Equal(t, []string{"reviews"}, p.Unset)

	_, err = Parse([]string{"novalue"}, nil)
	require.Error(t, err)
}

type sample struct {
	Name  string   `yaml:"name"`
	Price float64  `yaml:"price"`
	Tags  []string `yaml:"tags,omitempty"`
}

func TestApplyTo_Struct(t *testing.T) {
	s := sample{Name: "a", Price: 1, Tags: []string{"x"}}
	p, err := Parse([]string{"price=997", "name=Marketing Digital"}, []string{"tags"})
	require.NoError(t, err)
	require.NoError(t, ApplyTo(&s, p))
	require.Equal(t, sample{Name: "Marketing Digital", Price: 997}, s)
}
