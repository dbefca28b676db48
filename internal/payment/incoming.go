package payment

import "time"

// プロバイダごとのWebhookペイロードを正規化した入金レコード。
// 永続化はしない。マッチングの入力にだけ使う。
type IncomingPayment struct {
	Amount        int64
	Content       string // 振込メモ（利用者が手入力するので揺れる）
	TransactionID string
	BankCode      string
	TransferTime  *time.Time
}
