package app

import (
	"context"
	"fmt"
	"io"
	"time"
)

const banner = `
   ___    _              ___           _
  | __|__| |__ _ ___    / __|_  _ __ | |___
  | _|/ _' / _' / -_)  | (_| || / _|| / -_)
  |___\__,_\__, \___|   \___\_, \__||_\___|
           |___/            |__/
`

// bannerDelay is how long the banner stays alone on screen.
const bannerDelay = 3 * time.Second

// showBanner prints the banner and waits bannerDelay or until ctx ends.
func showBanner(ctx context.Context, w io.Writer, version string, delay time.Duration) error {
	_, _ = fmt.Fprintf(w, "%s  edgecycle %s\n\n", banner, version)
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
