package cmd

import (
	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/config"
)

// Shared variables across all commands
var (
	cfg    *config.Config
	logger *zap.Logger
)
