package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/exp/rand"
)

const invoiceSweepTimeout = 30 * time.Second

type invoiceExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// startInvoiceSweeper periodically expires invoices whose payment window
// has passed. A random start delay spreads sweeps of several instances.
func startInvoiceSweeper(ctx context.Context, svc invoiceExpirer, interval time.Duration, infoLog, errorLog *log.Logger) {
	if svc == nil || interval <= 0 {
		return
	}

	go func() {
		jitter := time.Duration(rand.Int63n(int64(interval)))
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter):
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runOnce := func() {
			runCtx, cancel := context.WithTimeout(ctx, invoiceSweepTimeout)
			expired, err := svc.ExpireDue(runCtx)
			cancel()
			if err != nil {
				if errorLog != nil {
					errorLog.Printf("invoice sweeper: %v", err)
				}
			} else if expired > 0 && infoLog != nil {
				infoLog.Printf("invoice sweeper: expired %d invoices", expired)
			}
		}

		runOnce()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
}
