package app

import "context"

// ctxKey keys the App inside a command context. Unexported struct type so no
// other package can collide with it.
type ctxKey struct{}

// SetAppInContext attaches the container to ctx for the command tree.
func SetAppInContext(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// GetAppFromContext returns the attached container, or nil when the command
// runs outside the usual PersistentPreRunE wiring.
func GetAppFromContext(ctx context.Context) *App {
	a, _ := ctx.Value(ctxKey{}).(*App)
	return a
}
