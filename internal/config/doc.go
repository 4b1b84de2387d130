// Package config handles configuration loading for the pulse client.
//
// Configuration is YAML with ${VAR_NAME} environment variable expansion and
// time.ParseDuration syntax for duration fields:
//
//	gateway:
//	  rest_base_url: "https://api.example.com"
//	  push_url: "wss://push.example.com/ws"
//	channel:
//	  heartbeat_interval: "25s"
//	  reconnect_delay: "5s"
//	  max_reconnects: 5  # 0 disables reconnects
//	notify:
//	  poll_interval: "15s"
//	  recency_window: "3m"
//	  page_size: 10
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	metrics:
//	  enabled: false
//	  addr: ":9090"
//	  path: "/metrics"
//
// Absent fields fall back to the defaults above. Both gateway endpoints are
// required.
package config
