package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/pama/data/db/drafts.db"
	}
	if cfg.Search.DebounceMS == 0 {
		cfg.Search.DebounceMS = 200
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 50
	}
	if cfg.Search.DefaultOptions == 0 {
		cfg.Search.DefaultOptions = 10
	}
	if cfg.Search.SearchBoost == 0 {
		cfg.Search.SearchBoost = 3.0
	}
	if cfg.Search.CodeBoost == 0 {
		cfg.Search.CodeBoost = 2.0
	}
	if cfg.Search.PrefixBoost == 0 {
		cfg.Search.PrefixBoost = 0.5
	}
	if cfg.Search.FuzzyBoost == 0 {
		cfg.Search.FuzzyBoost = 0.1
	}
	if cfg.Search.Fuzziness == nil {
		f := 1
		cfg.Search.Fuzziness = &f
	}
	if cfg.Search.SessionCacheSize == 0 {
		cfg.Search.SessionCacheSize = 1024
	}
}
