package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOrderCode_FullOrderNumberWins(t *testing.T) {
	code, ok := ExtractOrderCode("thanh toan ORD-20260209-1234")
	assert.True(t, ok)
	assert.Equal(t, "ORD-20260209-1234", code)
}

func TestExtractOrderCode_FullNumberPreferredOverCompact(t *testing.T) {
	// 両方入っていたら完全な注文番号を採用
	code, ok := ExtractOrderCode("DH00412345 ORD-20260209-1234")
	assert.True(t, ok)
	assert.Equal(t, "ORD-20260209-1234", code)
}

func TestExtractOrderCode_FullOrderNumberSixDigitSuffix(t *testing.T) {
	// 連番部は4桁以上なら何桁でも通す
	code, ok := ExtractOrderCode("thanh toan ORD-20260209-004213")
	assert.True(t, ok)
	assert.Equal(t, "ORD-20260209-004213", code)
}

func TestExtractOrderCode_CompactCodeDigits(t *testing.T) {
	code, ok := ExtractOrderCode("DH00412345 thanks")
	assert.True(t, ok)
	assert.Equal(t, "00412345", code)
}

func TestExtractOrderCode_CompactNeedsFourDigits(t *testing.T) {
	// 数字3桁では短すぎる
	_, ok := ExtractOrderCode("AB123")
	assert.False(t, ok)
}

func TestExtractOrderCode_NoCode(t *testing.T) {
	_, ok := ExtractOrderCode("cam on shop")
	assert.False(t, ok)
}

func TestExtractOrderCode_EmbeddedInNoise(t *testing.T) {
	code, ok := ExtractOrderCode("CK tu 0901234567 noi dung DH20260123 chuyen khoan")
	assert.True(t, ok)
	assert.Equal(t, "20260123", code)
}
