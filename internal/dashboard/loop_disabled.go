//go:build !moire_instrument

package dashboard

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/moire-rt/moire/internal/graph"
)

// Start is a no-op when instrumentation is compiled out. If MOIRE_DASHBOARD
// is set anyway, one warning line is printed to standard error at startup.
func Start(store *graph.Store, log *zap.Logger) (stop func()) {
	if os.Getenv("MOIRE_DASHBOARD") != "" {
		fmt.Fprintln(os.Stderr, "moire: MOIRE_DASHBOARD is set but instrumentation was not compiled in (build with -tags moire_instrument)")
	}
	return func() {}
}
