package rules

import "sync"

// Built-in group names.
const (
	GroupBase         = "Base"
	GroupScene        = "Scene"
	GroupTechnical    = "Technical"
	GroupLight        = "Light"
	GroupCryptomatte  = "Cryptomatte"
	GroupSceneObjects = "Scene Objects"
	BuiltinSource     = "builtin"
)

// defaultRules mirrors the render-pass naming used by common V-Ray/Corona
// style outputs: exact pass prefixes first, then the wildcard families.
var defaultRules = []Rule{
	{GroupBase, 10, MatchPrefix, "R"},
	{GroupBase, 10, MatchPrefix, "G"},
	{GroupBase, 10, MatchPrefix, "B"},
	{GroupBase, 10, MatchPrefix, "A"},
	{GroupBase, 10, MatchPrefix, "Beauty"},

	{GroupScene, 20, MatchPrefix, "Background"},
	{GroupScene, 20, MatchPrefix, "Translucency"},
	{GroupScene, 20, MatchPrefix, "Translucency0"},
	{GroupScene, 20, MatchPrefix, "VirtualBeauty"},
	{GroupScene, 20, MatchPrefix, "ZDepth"},

	{GroupTechnical, 30, MatchPrefix, "RenderStamp"},
	{GroupTechnical, 30, MatchPrefix, "RenderStamp0"},

	{GroupLight, 40, MatchPrefix, "Sky"},
	{GroupLight, 40, MatchPrefix, "Sun"},
	{GroupLight, 40, MatchPrefix, "LightMix"},
	{GroupLight, 45, MatchWildcard, "Light*"},

	{GroupCryptomatte, 50, MatchPrefix, "Cryptomatte"},
	{GroupCryptomatte, 50, MatchPrefix, "Cryptomatte0"},
	{GroupCryptomatte, 55, MatchWildcard, "Crypto*"},

	{GroupSceneObjects, 60, MatchWildcard, "ID*"},
	{GroupSceneObjects, 60, MatchWildcard, "_*"},
}

var defaultSet = sync.OnceValue(func() *RuleSet {
	rs, err := NewRuleSet(BuiltinSource, defaultRules)
	if err != nil {
		panic("rules: invalid built-in rule set: " + err.Error())
	}
	return rs
})

// Default returns the built-in rule set. The same pointer is returned on
// every call.
func Default() *RuleSet { return defaultSet() }

// DefaultRules returns a copy of the built-in rules in declaration order.
func DefaultRules() []Rule {
	return append([]Rule(nil), defaultRules...)
}
