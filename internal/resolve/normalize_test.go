package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
	assert.Equal(t, "", NormalizeName("(주)"))
}

func TestNormalizeName_Lowercase(t *testing.T) {
	assert.Equal(t, "abcfund", NormalizeName("ABC Fund"))
}

func TestNormalizeName_LatinSuffix(t *testing.T) {
	assert.Equal(t, "blackrock", NormalizeName("BlackRock, Inc."))
	assert.Equal(t, "blackrock", NormalizeName("BlackRock Corp"))
	assert.Equal(t, "acmeadvisors", NormalizeName("Acme Advisors LLC"))
	assert.Equal(t, "vanguardgroup", NormalizeName("Vanguard Group Holdings"))
}

func TestNormalizeName_OneSuffixOnly(t *testing.T) {
	// Only the last suffix goes; "asset" stays behind "management".
	assert.Equal(t, "samsungasset", NormalizeName("Samsung Asset Management"))
}

func TestNormalizeName_Ampersand(t *testing.T) {
	assert.Equal(t, "smithandjones", NormalizeName("Smith & Jones"))
	assert.Equal(t, NormalizeName("Smith and Jones"), NormalizeName("Smith & Jones"))
}

func TestNormalizeName_Brackets(t *testing.T) {
	assert.Equal(t, "삼성생명보험", NormalizeName("삼성생명보험(주)"))
	assert.Equal(t, "abcfund", NormalizeName("ABC [KR] Fund {old}"))
}

func TestNormalizeName_FullWidth(t *testing.T) {
	assert.Equal(t, "삼성생명보험", NormalizeName("삼성생명보험（주）"))
	assert.Equal(t, "abc", NormalizeName("ＡＢＣ"))
}

func TestNormalizeName_KoreanSuffix(t *testing.T) {
	assert.Equal(t, "국민연금", NormalizeName("국민연금공단"))
	assert.Equal(t, "미래에셋자산", NormalizeName("미래에셋자산운용"))
	assert.Equal(t, "한국투자신탁", NormalizeName("한국투자신탁 주식회사"))
}

func TestNormalizeName_Equivalent(t *testing.T) {
	pairs := [][2]string{
		{"삼성생명보험(주)", "삼성생명보험"},
		{"BlackRock Inc", "blackrock"},
		{"J.P. Morgan", "JP Morgan"},
	}
	for _, p := range pairs {
		assert.Equal(t, NormalizeName(p[0]), NormalizeName(p[1]), "%q vs %q", p[0], p[1])
	}
}
