// Package guard forces test mode before any entrypoint logic runs. Test
// files blank-import it so binaries under test skip runtime side effects.
package guard

import (
	"os"
	"sync"

	"github.com/atriumhq/atrium/internal/app"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ATRIUM_TEST_MODE") == "" {
			_ = os.Setenv("ATRIUM_TEST_MODE", "1")
		}
		app.RefreshTestMode()
	})
}
