// Package loader registers cache drivers via blank imports.
//
// Usage in main.go:
//
//	import _ "github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache/loader"
package loader

import (
	_ "github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache/memory"
	_ "github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache/valkey"
)
