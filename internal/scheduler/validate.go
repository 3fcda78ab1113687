package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/flemzord/edgecycle/internal/datasource"
	"github.com/flemzord/edgecycle/internal/proxy"
)

// Validate is the startup gate run once before the first cycle. It
// returns ErrInsufficientProxies when proxies are requested but fewer
// than the accounts, and ErrNoAccounts when there is nothing to process.
// An empty proxy pool is only reported.
func Validate(logger *slog.Logger, useProxy bool, accounts []datasource.Account, proxies []proxy.Addr) error {
	if logger == nil {
		logger = slog.Default()
	}

	if useProxy && len(proxies) < len(accounts) {
		return fmt.Errorf("%w: proxies=%d wallets=%d", ErrInsufficientProxies, len(proxies), len(accounts))
	}
	if len(proxies) == 0 {
		logger.Warn("no proxies found, running without proxies")
	}
	if len(accounts) == 0 {
		return ErrNoAccounts
	}
	return nil
}
