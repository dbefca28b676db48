package payment

import (
	"encoding/json"
	"time"
)

// Adapterはプロバイダ固有のペイロード形を1つだけ知っている。
// 形が合えば正規化したIncomingPaymentを返し、合わなければfalseを返す。
type Adapter interface {
	Name() string
	TryParse(raw map[string]interface{}) (IncomingPayment, bool)
}

// 優先順に並べたアダプタ。先に形が合ったものが勝つ。
func DefaultAdapters() []Adapter {
	return []Adapter{
		dataArrayAdapter{},
		codedResponseAdapter{},
		transferTypeAdapter{},
		genericAdapter{},
	}
}

// Normalizeは生のJSONボディをアダプタ順に試す。
func Normalize(body []byte, adapters []Adapter) (IncomingPayment, string, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return IncomingPayment{}, "", false
	}
	for _, a := range adapters {
		if p, ok := a.TryParse(raw); ok {
			return p, a.Name(), true
		}
	}
	return IncomingPayment{}, "", false
}

// --- 形1: {data: [{amount, description, id|tid, bankSubAccId, when}]} ---

type dataArrayAdapter struct{}

func (dataArrayAdapter) Name() string { return "data_array" }

func (dataArrayAdapter) TryParse(raw map[string]interface{}) (IncomingPayment, bool) {
	arr, ok := raw["data"].([]interface{})
	if !ok || len(arr) == 0 {
		return IncomingPayment{}, false
	}
	first, ok := arr[0].(map[string]interface{})
	if !ok {
		return IncomingPayment{}, false
	}
	amount, ok := pickAmount(first, "amount")
	if !ok {
		return IncomingPayment{}, false
	}
	return IncomingPayment{
		Amount:        amount,
		Content:       pickString(first, "description"),
		TransactionID: pickString(first, "id", "tid"),
		BankCode:      pickString(first, "bankSubAccId"),
		TransferTime:  pickTime(first, "when"),
	}, true
}

// --- 形2: {code:"00", data:{amount, description|orderCode, reference|id, transactionDateTime}} ---

type codedResponseAdapter struct{}

func (codedResponseAdapter) Name() string { return "coded_response" }

func (codedResponseAdapter) TryParse(raw map[string]interface{}) (IncomingPayment, bool) {
	if pickString(raw, "code") != "00" {
		return IncomingPayment{}, false
	}
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return IncomingPayment{}, false
	}
	amount, ok := pickAmount(data, "amount")
	if !ok {
		return IncomingPayment{}, false
	}
	content := pickString(data, "description")
	if content == "" {
		content = pickString(data, "orderCode")
	}
	return IncomingPayment{
		Amount:        amount,
		Content:       content,
		TransactionID: pickString(data, "reference", "id"),
		TransferTime:  pickTime(data, "transactionDateTime"),
	}, true
}

// --- 形3: {transferType, content, transferAmount, id|referenceCode, subAccId, transactionDate} ---

type transferTypeAdapter struct{}

func (transferTypeAdapter) Name() string { return "transfer_type" }

func (transferTypeAdapter) TryParse(raw map[string]interface{}) (IncomingPayment, bool) {
	if pickString(raw, "transferType") == "" {
		return IncomingPayment{}, false
	}
	amount, ok := pickAmount(raw, "transferAmount")
	if !ok {
		return IncomingPayment{}, false
	}
	return IncomingPayment{
		Amount:        amount,
		Content:       pickString(raw, "content"),
		TransactionID: pickString(raw, "id", "referenceCode"),
		BankCode:      pickString(raw, "subAccId"),
		TransferTime:  pickTime(raw, "transactionDate"),
	}, true
}

// --- 形4: 汎用 {amount, content|description|memo, transactionId|id|reference, bankCode, transferTime} ---

type genericAdapter struct{}

func (genericAdapter) Name() string { return "generic" }

func (genericAdapter) TryParse(raw map[string]interface{}) (IncomingPayment, bool) {
	amount, ok := pickAmount(raw, "amount")
	if !ok {
		return IncomingPayment{}, false
	}
	content := pickString(raw, "content", "description", "memo")
	if content == "" {
		return IncomingPayment{}, false
	}
	return IncomingPayment{
		Amount:        amount,
		Content:       content,
		TransactionID: pickString(raw, "transactionId", "id", "reference"),
		BankCode:      pickString(raw, "bankCode"),
		TransferTime:  pickTime(raw, "transferTime"),
	}, true
}

// --- 取り出しヘルパー ---

func pickString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// 金額は数値でも文字列でも来る
func pickAmount(m map[string]interface{}, key string) (int64, bool) {
	switch v := m[key].(type) {
	case float64:
		return int64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// 時刻の書式もプロバイダ次第。読めなければnilで、呼び出し側が受信時刻を使う。
func pickTime(m map[string]interface{}, keys ...string) *time.Time {
	for _, k := range keys {
		s, ok := m[k].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
	}
	return nil
}
