package config

// mergeConfigs merges override configuration into base
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	if override.Root != "" {
		result.Root = override.Root
	}
	if override.Exclude != nil {
		result.Exclude = override.Exclude
	}

	result.Watch = mergeWatch(result.Watch, override.Watch)
	result.Refresh = mergeRefresh(result.Refresh, override.Refresh)

	if override.Queries.Python != "" {
		result.Queries.Python = override.Queries.Python
	}
	if override.Queries.Du != "" {
		result.Queries.Du = override.Queries.Du
	}
	if override.Snapshot.Enabled != nil {
		result.Snapshot.Enabled = override.Snapshot.Enabled
	}
	if override.Snapshot.Path != "" {
		result.Snapshot.Path = override.Snapshot.Path
	}
	if override.Daemon.Socket != "" {
		result.Daemon.Socket = override.Daemon.Socket
	}
	if override.Daemon.Pidfile != "" {
		result.Daemon.Pidfile = override.Daemon.Pidfile
	}

	// Merge extensions
	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(result.Extensions)+len(override.Extensions))
		for key, value := range result.Extensions {
			merged[key] = value
		}
		for key, value := range override.Extensions {
			// If both base and override have the same extension key, merge them
			if baseValue, exists := merged[key]; exists {
				if baseMap, baseOk := baseValue.(map[string]interface{}); baseOk {
					if overrideMap, overrideOk := value.(map[string]interface{}); overrideOk {
						mergedMap := make(map[string]interface{})
						for k, v := range baseMap {
							mergedMap[k] = v
						}
						for k, v := range overrideMap {
							mergedMap[k] = v
						}
						merged[key] = mergedMap
						continue
					}
				}
			}
			merged[key] = value
		}
		result.Extensions = merged
	}

	return &result
}

func mergeWatch(base, override WatchConfig) WatchConfig {
	result := base

	if override.Debounce != "" {
		result.Debounce = override.Debounce
	}
	if override.RescanInterval != "" {
		result.RescanInterval = override.RescanInterval
	}
	if override.RestartBackoff != "" {
		result.RestartBackoff = override.RestartBackoff
	}

	return result
}

func mergeRefresh(base, override RefreshConfig) RefreshConfig {
	result := base

	if override.Workers != 0 {
		result.Workers = override.Workers
	}
	if override.QueryTimeout != "" {
		result.QueryTimeout = override.QueryTimeout
	}
	if override.ShutdownGrace != "" {
		result.ShutdownGrace = override.ShutdownGrace
	}

	return result
}
