package classify

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/exrscan/internal/exr"
	"github.com/backmassage/exrscan/internal/rules"
)

func meta(parts ...[]string) *exr.FileMetadata {
	m := &exr.FileMetadata{Path: "shot.exr", Version: 2}
	for _, names := range parts {
		var p exr.Part
		for _, n := range names {
			p.Channels = append(p.Channels, exr.Channel{Name: n, PixelType: exr.PixelHalf, XSampling: 1, YSampling: 1})
		}
		m.Parts = append(m.Parts, p)
	}
	return m
}

func channelNames(g *Group) []string {
	var out []string
	for _, c := range g.Channels {
		out = append(out, c.Name)
	}
	return out
}

func TestClassify_DefaultRules(t *testing.T) {
	m := meta([]string{"R", "G", "B", "A", "ZDepth", "Light_Key.R", "ID_Mat.R", "diffuse.R", "Sun.R"})

	g, err := Classify(m, rules.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"Base", "Scene", "Light", "Scene Objects", "Unclassified"}, g.Names())
	assert.Equal(t, []string{"R", "G", "B", "A"}, channelNames(g.Lookup("Base")))
	assert.Equal(t, []string{"Light_Key.R", "Sun.R"}, channelNames(g.Lookup("Light")))
	assert.Equal(t, []string{"diffuse.R"}, channelNames(g.Lookup(rules.Unclassified)))
	assert.Nil(t, g.Lookup("Technical"))
	assert.Equal(t, 9, g.Total())
	assert.Equal(t, rules.BuiltinSource, g.RuleSource)
	assert.Equal(t, "shot.exr", g.Path)
}

func TestClassify_PriorityDeterminism(t *testing.T) {
	rs, err := rules.NewRuleSet("test", []rules.Rule{
		{Group: "B", Priority: 5, Kind: rules.MatchWildcard, Pattern: "*.R"},
		{Group: "A", Priority: 1, Kind: rules.MatchWildcard, Pattern: "diffuse*"},
	})
	require.NoError(t, err)

	m := meta([]string{"diffuse_direct.R"})
	for i := 0; i < 20; i++ {
		g, err := Classify(m, rs)
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, g.Names())
	}
}

func TestClassify_PrefixRulesMatchWholeSegments(t *testing.T) {
	rs, err := rules.NewRuleSet("test", []rules.Rule{
		{Group: "A", Priority: 1, Kind: rules.MatchPrefix, Pattern: "diffuse"},
		{Group: "B", Priority: 2, Kind: rules.MatchPrefix, Pattern: "diffuse_direct"},
	})
	require.NoError(t, err)

	g, err := Classify(meta([]string{"diffuse_direct.R", "diffuse.G"}), rs)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, g.Names())
	assert.Equal(t, []string{"diffuse_direct.R"}, channelNames(g.Lookup("B")))
	assert.Equal(t, []string{"diffuse.G"}, channelNames(g.Lookup("A")))
}

func TestClassify_PartitionAcrossParts(t *testing.T) {
	m := meta(
		[]string{"R", "G", "B", "A", "Cryptomatte00.R"},
		[]string{"R", "G", "B", "RenderStamp.R", "mystery"},
	)

	g, err := Classify(m, rules.Default())
	require.NoError(t, err)

	assert.Equal(t, m.TotalChannels(), g.Total())
	seen := 0
	for _, grp := range g.Groups {
		assert.NotEmpty(t, grp.Channels, grp.Name)
		seen += len(grp.Channels)
	}
	assert.Equal(t, 10, seen)
	assert.Len(t, g.Lookup("Base").Channels, 7)
	assert.Equal(t, []string{"Base", "Cryptomatte", "Technical", "Unclassified"}, g.Names())
}

func TestClassify_NoRulesEverythingUnclassified(t *testing.T) {
	rs, err := rules.NewRuleSet("empty", nil)
	require.NoError(t, err)

	g, err := Classify(meta([]string{"R", "G"}), rs)
	require.NoError(t, err)
	assert.Equal(t, []string{rules.Unclassified}, g.Names())
	assert.Equal(t, 2, g.Total())
}

func TestClassify_NilInputsAreAssertions(t *testing.T) {
	_, err := Classify(nil, rules.Default())
	require.Error(t, err)
	assert.True(t, errors.HasAssertionFailure(err))

	_, err = Classify(meta([]string{"R"}), nil)
	assert.True(t, errors.HasAssertionFailure(err))
}
