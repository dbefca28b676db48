package payment

import "regexp"

// 振込メモから注文コードを抜く。
// 完全な注文番号（ORD-YYYYMMDD-の後に数字4桁以上）を優先し、
// 無ければ「英字2文字+数字4桁以上」の短縮コードから数字部分を取る。
var (
	fullOrderNumberRe = regexp.MustCompile(`ORD-\d{8}-\d{4,}`)
	compactCodeRe     = regexp.MustCompile(`[A-Za-z]{2}(\d{4,})`)
)

// ExtractOrderCodeはメモ中で最初に見つかったコードを返す。
func ExtractOrderCode(content string) (string, bool) {
	if m := fullOrderNumberRe.FindString(content); m != "" {
		return m, true
	}
	if m := compactCodeRe.FindStringSubmatch(content); m != nil {
		return m[1], true
	}
	return "", false
}
