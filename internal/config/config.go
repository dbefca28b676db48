package config

import (
	"fmt"
	"os"
	"strconv"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5433）

	JWTSecret string // JWT署名シークレット

	// 銀行振込まわり
	PaymentTimeoutMinutes  int    // 未入金注文の期限（分）
	PaymentAmountTolerance int64  // 入金額の許容誤差（最小通貨単位）
	WebhookSecret          string // 入金Webhookの共有シークレット（空なら検証なし）
	BankCode               string // 振込先の銀行コード
	BankAccountNumber      string // 振込先の口座番号
	BankAccountName        string // 振込先の口座名義

	// 送料
	FreeShippingThreshold int64 // この金額以上で送料無料
	FlatShippingFee       int64 // 通常送料

	SweepIntervalSeconds int // 期限切れ掃除の間隔（秒）

	GoEnv string // dev/prod
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		PaymentTimeoutMinutes:  atoiDefault("PAYMENT_TIMEOUT_MINUTES", 30),
		PaymentAmountTolerance: atoi64Default("PAYMENT_AMOUNT_TOLERANCE", 1000),
		WebhookSecret:          os.Getenv("WEBHOOK_SECRET"),
		BankCode:               os.Getenv("BANK_CODE"),
		BankAccountNumber:      os.Getenv("BANK_ACCOUNT_NUMBER"),
		BankAccountName:        os.Getenv("BANK_ACCOUNT_NAME"),

		FreeShippingThreshold: atoi64Default("FREE_SHIPPING_THRESHOLD", 500000),
		FlatShippingFee:       atoi64Default("FLAT_SHIPPING_FEE", 30000),

		SweepIntervalSeconds: atoiDefault("SWEEP_INTERVAL_SECONDS", 60),

		GoEnv: os.Getenv("GO_ENV"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.PostgresUser == "" {
		return Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.PostgresDB == "" {
		return Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.PostgresHost == "" {
		return Config{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.BankCode == "" {
		return Config{}, fmt.Errorf("BANK_CODE is required")
	}
	if cfg.BankAccountNumber == "" {
		return Config{}, fmt.Errorf("BANK_ACCOUNT_NUMBER is required")
	}
	if cfg.BankAccountName == "" {
		return Config{}, fmt.Errorf("BANK_ACCOUNT_NAME is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.PaymentTimeoutMinutes <= 0 {
		return Config{}, fmt.Errorf("PAYMENT_TIMEOUT_MINUTES must be positive")
	}
	if cfg.PaymentAmountTolerance < 0 {
		return Config{}, fmt.Errorf("PAYMENT_AMOUNT_TOLERANCE must be non-negative")
	}

	return cfg, nil
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atoiDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func atoi64Default(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}
