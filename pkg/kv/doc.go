// Package kv is the key-value layer behind deployment records and run
// leases. Backends live in sub-packages and register on import:
//
//	import (
//		_ "github.com/leafsii/reserve-bootstrap/pkg/kv/memory"
//		_ "github.com/leafsii/reserve-bootstrap/pkg/kv/redis"
//	)
//
//	store, err := kv.Open(kv.Config{Backend: kv.BackendRedis, RedisURL: url})
package kv
