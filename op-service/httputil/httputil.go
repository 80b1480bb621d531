// Package httputil provides small helpers shared by the metrics and
// (future) admin HTTP surfaces of the batcher.
package httputil

import (
	"context"
	"errors"
	"net/http"
)

// ListenAndServeContext runs srv until ctx is canceled, then shuts it down
// gracefully. It returns nil on a clean shutdown, matching the convention
// used by the metrics server in this codebase family.
func ListenAndServeContext(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
		return <-errCh
	}
}
