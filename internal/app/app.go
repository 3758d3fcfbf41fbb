// Package app wires the command and query handlers into a single
// application facade for the inbound transport to consume.
package app

import (
	"github.com/yunhaishang/Mallorn-sub002/internal/port/inbound/command"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/inbound/query"
)

// Application groups every handler the auth subsystem exposes.
type Application struct {
	Commands Commands
	Queries  Queries
}

// Commands holds the write-side handlers.
type Commands struct {
	IssueTokenPair  command.IssueTokenPairHandler
	RotateToken     command.RotateTokenHandler
	RevokeToken     command.RevokeTokenHandler
	RevokeAllTokens command.RevokeAllTokensHandler
}

// Queries holds the read-side handlers.
type Queries struct {
	GetPrincipal      query.GetPrincipalHandler
	GetPrincipalBatch query.GetPrincipalBatchHandler
	GetPermissions    query.GetPermissionsHandler
}
