package config

import (
	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitstore"
	"github.com/Sumatoshi-tech/branchstat/pkg/vbranch"
)

// Default values.
const (
	DefaultTarget         = branches.DefaultTarget
	DefaultRemote         = "origin"
	DefaultBaseStrategy   = string(branches.DefaultBaseStrategy)
	DefaultWorkers        = 0
	DefaultDiffCacheSize  = gitstore.DefaultDiffCacheSize
	DefaultDiffCacheFiles = gitstore.DefaultDiffCacheFileLimit
	DefaultVirtualPath    = vbranch.DefaultStatePath
	DefaultFormat         = FormatTable
	DefaultLogLevel       = "info"
	DefaultLogJSON        = false
)
