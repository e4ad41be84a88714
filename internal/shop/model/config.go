package model

import "time"

// ================ Config ================
type ShopConfig struct {
	BaseURL          string        `envconfig:"SHOP_BASE_URL" default:"http://localhost:5000"`
	Timeout          time.Duration `envconfig:"SHOP_HTTP_TIMEOUT" default:"15s"`
	UserAgent        string        `envconfig:"SHOP_USER_AGENT" default:"shopcore/1.0"`
	UserRole         string        `envconfig:"SHOP_USER_ROLE" default:"customer"`
	DeliveryFee      string        `envconfig:"SHOP_DELIVERY_FEE" default:"15.00"`
	FreeDeliveryFrom string        `envconfig:"SHOP_FREE_DELIVERY_FROM"`
}

type UpdateConfig struct {
	Interval            time.Duration `envconfig:"UPDATE_INTERVAL" default:"30s"`
	IOSInterval         time.Duration `envconfig:"UPDATE_IOS_INTERVAL" default:"10s"`
	RecentUpdateWindow  time.Duration `envconfig:"UPDATE_RECENT_WINDOW" default:"5m"`
	AdminActivityWindow time.Duration `envconfig:"UPDATE_ADMIN_ACTIVITY_WINDOW" default:"60s"`
	ReloadDelay         time.Duration `envconfig:"UPDATE_RELOAD_DELAY" default:"500ms"`
	FallbackDelay       time.Duration `envconfig:"UPDATE_FALLBACK_DELAY" default:"1s"`
	ReloadCommand       string        `envconfig:"UPDATE_RELOAD_COMMAND"`
	CacheDir            string        `envconfig:"UPDATE_CACHE_DIR" default:"./.cache/storage"`
	DatabaseDir         string        `envconfig:"UPDATE_DATABASE_DIR" default:"./.cache/indexeddb"`
}

type ReleaseConfig struct {
	Addr       string   `envconfig:"RELEASE_ADDR" default:":5000"`
	Root       string   `envconfig:"RELEASE_ROOT" default:"."`
	Version    string   `envconfig:"RELEASE_VERSION" default:"1.0.0"`
	BuildTime  string   `envconfig:"BUILD_TIME"`
	WatchFiles []string `envconfig:"RELEASE_WATCH_FILES"`
	WorkerFile string   `envconfig:"RELEASE_WORKER_FILE" default:"client/public/sw.js"`
	EnvFile    string   `envconfig:"RELEASE_ENV_FILE" default:".env"`
}
