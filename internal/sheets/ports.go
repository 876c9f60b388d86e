// Package sheets defines the mirror port: an append-only backup of expense
// rows kept outside the primary store.
package sheets

import (
	"context"

	"gastos/internal/core"
)

// Mirror appends one expense row to the backup and returns an opaque
// reference to where it landed.
type Mirror interface {
	Append(ctx context.Context, e core.Expense) (string, error)
}
