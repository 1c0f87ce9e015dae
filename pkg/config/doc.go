/*
Package config loads and validates docstream configuration.

Configuration is a single YAML file unmarshalled over defaults, so a
partial file only overrides what it names. Validate runs on every load and
rejects unknown backends, non-positive timeouts, and unknown selection
strategies.

# Example

	store:
	  type: filesystem
	  data_dir: /var/lib/docstream
	queue:
	  backend: redis
	  redis_url: redis://localhost:6379/0
	  max_concurrent_workers: 4
	  retry_max_attempts: 3
	gateway:
	  selection_strategy: balanced
	  providers:
	    anthropic:
	      enabled: true
	      api_key: sk-ant-...
	      quality_score: 0.9
	log:
	  level: info
	  json: true
	metrics:
	  addr: :9090
*/
package config
