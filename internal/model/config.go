package model

import "time"

// Config holds the complete herbia configuration
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	INaturalist INaturalistConfig `yaml:"inaturalist" mapstructure:"inaturalist"`
	Wikipedia   WikipediaConfig   `yaml:"wikipedia" mapstructure:"wikipedia"`
	PlantNet    PlantNetConfig    `yaml:"plantnet" mapstructure:"plantnet"`
	Selection   SelectionConfig   `yaml:"selection" mapstructure:"selection"`
	Route       RouteConfig       `yaml:"route" mapstructure:"route"`
	Quota       QuotaConfig       `yaml:"quota" mapstructure:"quota"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// HTTPConfig controls outbound requests to public data sources
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RatePerHost  float64       `yaml:"rate_per_host" mapstructure:"rate_per_host"` // Requests per second
	BurstPerHost int           `yaml:"burst_per_host" mapstructure:"burst_per_host"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LLMConfig selects and tunes the generative text model
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, groq, anthropic, ollama, gemini
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	Attempts    int           `yaml:"attempts" mapstructure:"attempts"`
}

// INaturalistConfig configures discovery, taxonomy and field photos
type INaturalistConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	PerPage        int     `yaml:"per_page" mapstructure:"per_page"`
	PhotosPerTaxon int     `yaml:"photos_per_taxon" mapstructure:"photos_per_taxon"`
	ZoneRadiusKm   float64 `yaml:"zone_radius_km" mapstructure:"zone_radius_km"`
}

// WikipediaConfig configures the curated photo source
type WikipediaConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	HTMLFallback  bool   `yaml:"html_fallback" mapstructure:"html_fallback"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// PlantNetConfig configures photo identification
type PlantNetConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// SelectionConfig holds the rarity thresholds and diversity quotas
type SelectionConfig struct {
	CommonRatio   float64 `yaml:"common_ratio" mapstructure:"common_ratio"`
	RareRatio     float64 `yaml:"rare_ratio" mapstructure:"rare_ratio"`
	CommonQuota   int     `yaml:"common_quota" mapstructure:"common_quota"`
	RareQuota     int     `yaml:"rare_quota" mapstructure:"rare_quota"`
	VeryRareQuota int     `yaml:"very_rare_quota" mapstructure:"very_rare_quota"`
	Target        int     `yaml:"target" mapstructure:"target"`
	MinCandidates int     `yaml:"min_candidates" mapstructure:"min_candidates"` // Below this, use the fallback path
}

// RouteConfig controls the feasibility gate
type RouteConfig struct {
	MaxDistanceKm float64 `yaml:"max_distance_km" mapstructure:"max_distance_km"`
}

// QuotaConfig selects the daily counter backend
type QuotaConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // memory, redis, postgres
	DailyLimit  int64  `yaml:"daily_limit" mapstructure:"daily_limit"`
	RedisAddr   string `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty" mapstructure:"postgres_dsn"`
}

// CacheConfig controls response caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ServerConfig configures `herbia serve`
type ServerConfig struct {
	Addr         string   `yaml:"addr" mapstructure:"addr"`
	AllowOrigins []string `yaml:"allow_origins" mapstructure:"allow_origins"`
	Concurrency  int      `yaml:"concurrency" mapstructure:"concurrency"` // Photo fan-out bound per request
}

// LogConfig selects the logger mode
type LogConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // dev or prod
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			UserAgent:    "herbia/0.3 (+https://github.com/ppiankov/herbia)",
			MaxBodyBytes: 5 * 1024 * 1024,
			RatePerHost:  5,
			BurstPerHost: 5,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     30 * time.Second,
			MaxTokens:   2000,
			Temperature: 0.7,
			Attempts:    2,
		},
		INaturalist: INaturalistConfig{
			BaseURL:        "https://api.inaturalist.org/v1",
			PerPage:        50,
			PhotosPerTaxon: 5,
			ZoneRadiusKm:   10,
		},
		Wikipedia: WikipediaConfig{
			BaseURL:       "https://en.wikipedia.org",
			HTMLFallback:  true,
			RespectRobots: true,
		},
		PlantNet: PlantNetConfig{
			BaseURL:        "https://my-api.plantnet.org/v2",
			MaxUploadBytes: 5 * 1024 * 1024,
		},
		Selection: SelectionConfig{
			CommonRatio:   0.30,
			RareRatio:     0.05,
			CommonQuota:   3,
			RareQuota:     1,
			VeryRareQuota: 1,
			Target:        5,
			MinCandidates: 3,
		},
		Route: RouteConfig{
			MaxDistanceKm: 100,
		},
		Quota: QuotaConfig{
			Backend:    "memory",
			DailyLimit: 150,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".herbia-cache",
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			AllowOrigins: []string{"*"},
			Concurrency:  5,
		},
		Log: LogConfig{
			Mode: "prod",
		},
	}
}
