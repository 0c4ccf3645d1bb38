package main

import (
	"go.uber.org/zap"

	"github.com/hamed0406/imisu/internal/config"
	"github.com/hamed0406/imisu/internal/monitor"
	"github.com/hamed0406/imisu/internal/probe"
)

func newEvaluator(cfg config.Config, l *zap.Logger, obs monitor.Observer) *monitor.Evaluator {
	return monitor.NewEvaluator(l, monitor.Checkers{
		HTTP: probe.NewHTTPChecker(cfg.HTTPTimeout),
		DNS:  probe.NewDNSChecker(cfg.DNSTimeout),
		TCP:  probe.NewTCPChecker(cfg.TCPTimeout),
		Ping: probe.NewPingChecker(cfg.PingPrivileged),
	}, obs)
}
