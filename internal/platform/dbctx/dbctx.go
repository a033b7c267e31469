package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repos fall back to their own handle when Tx is nil.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background is a Context with no transaction and context.Background().
func Background() Context {
	return Context{Ctx: context.Background()}
}

// With returns a copy of c bound to tx.
func (c Context) With(tx *gorm.DB) Context {
	return Context{Ctx: c.Ctx, Tx: tx}
}

// DB resolves the handle a repo should query with.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	tx := c.Tx
	if tx == nil {
		tx = fallback
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return tx.WithContext(ctx)
}
