// Package loader registers store drivers via blank imports.
package loader

import (
	_ "github.com/gloriousnetworker/dcarbon-portal/internal/platform/store/memory"
	_ "github.com/gloriousnetworker/dcarbon-portal/internal/platform/store/postgres"
	_ "github.com/gloriousnetworker/dcarbon-portal/internal/platform/store/sqlite"
)
