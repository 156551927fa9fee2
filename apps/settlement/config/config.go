package config

// Config 对应 config/settlement.yaml 的内容
type Config struct {
	Name     string
	LogLevel string

	HTTP struct {
		Addr string // ":8087"
	}

	// 调度方 (cron/运维) 调用时携带的共享密钥
	WorkerSecret string

	Mysql struct {
		DSN         string // "user:pass@tcp(ip:port)/db..."
		MaxIdle     int
		MaxOpen     int
		MaxLifetime int // 秒
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Worker struct {
		// 广播失败后是否自动退款回源钱包
		RefundEnabled bool
		// 单次广播调用的超时秒数，超时按广播失败处理
		BroadcastTimeoutSecond int
	}

	Networks struct {
		EVM struct {
			Enabled       bool
			NodeURL       string
			PrivateKeyHex string
			NativeSymbol  string
			Tokens        map[string]struct {
				Contract string
				Decimals int32
			}
		}
		Bitcoin struct {
			Enabled bool
			Host    string
			User    string
			Pass    string
		}
		Tron struct {
			Enabled    bool
			GatewayURL string
			APIKey     string
		}
	}
}
