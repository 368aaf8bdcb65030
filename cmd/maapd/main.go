// Copyright 2024 The MAAP Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command maapd runs the MAAP engine against one network interface
// and exposes it over a Unix domain control socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maap-project/maapd/internal/config"
	"github.com/maap-project/maapd/internal/control"
	"github.com/maap-project/maapd/internal/engine"
	"github.com/maap-project/maapd/internal/metrics"
	"github.com/maap-project/maapd/internal/netadapter"
	"github.com/maap-project/maapd/internal/pdu"
	"github.com/maap-project/maapd/pkg/utils/hwaddr"
)

// netIO is the subset of netadapter.Adapter (or netadapter.Fake) the
// daemon needs: send frames via engine.NetSender, and pull received
// ones off the wire in a dedicated reader goroutine.
type netIO interface {
	engine.NetSender
	Recv(buf []byte) (int, error)
	Close() error
}

func main() {
	fs := flag.NewFlagSet("maapd", flag.ExitOnError)
	flags := config.Bind(fs)
	metricsAddr := fs.String("metrics-addr", ":9212", "address to serve /metrics on")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(flags.ConfigPath())
	if err != nil {
		log.Fatalf("maapd: %v", err)
	}
	flags.Override(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("maapd: %v", err)
	}

	if cfg.PidFile != "" {
		if !filepath.IsAbs(cfg.PidFile) {
			log.Fatalf("maapd: pidfile path %q must be absolute", cfg.PidFile)
		}
		if err := os.WriteFile(cfg.PidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			log.Fatalf("maapd: write pidfile %q: %v", cfg.PidFile, err)
		}
		defer os.Remove(cfg.PidFile)
	}

	logger := log.New(os.Stderr, "maapd: ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, destMAC, srcMAC, err := openNetwork(cfg)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer adapter.Close()

	reg := prometheus.NewRegistry()
	mtr := metrics.NewMetrics(reg)

	eng := engine.New(adapter, nil, time.Now, logger)
	if err := eng.Init(nil, destMAC, srcMAC, cfg.PoolBase, cfg.PoolLength); err != nil {
		logger.Fatalf("engine init: %v", err)
	}
	defer eng.Deinit()

	svc := control.NewService(eng)
	listener, err := control.Listen(cfg.SocketPath)
	if err != nil {
		logger.Fatalf("control listen: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := control.Serve(listener, svc); err != nil && ctx.Err() == nil {
			logger.Printf("control server error: %v", err)
		}
	}()

	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runEngineLoop(ctx, eng, adapter, mtr, logger)
	}()

	logger.Printf("up interface=%s socket=%s", cfg.Interface, cfg.SocketPath)
	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case <-svc.Shutdown():
		logger.Printf("shutdown requested over control channel")
		stop()
	}

	listener.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metricsSrv.Shutdown(shutdownCtx)

	wg.Wait()
	logger.Printf("maapd stopped")
}

// openNetwork opens either a real raw-socket adapter or the
// in-process simulated bus, per cfg.FakeInterface.
func openNetwork(cfg *config.Config) (netIO, [6]byte, [6]byte, error) {
	if cfg.FakeInterface {
		bus := netadapter.NewBus()
		hw := hwaddr.GenerateMAC()
		var mac [6]byte
		copy(mac[:], hw)
		return bus.NewFake(hw), pdu.DestMAC, mac, nil
	}

	a, err := netadapter.Open(cfg.Interface)
	if err != nil {
		var zero [6]byte
		return nil, zero, zero, err
	}
	var src [6]byte
	copy(src[:], a.HardwareAddr())
	return a, pdu.DestMAC, src, nil
}

// runEngineLoop is maapd's single-goroutine protocol driver: it
// multiplexes incoming frames (read by a dedicated reader goroutine
// and handed over on a channel) against the engine's own timer
// deadline, and drains notifications into metrics and the log after
// every event.
func runEngineLoop(ctx context.Context, eng *engine.Engine, nio netIO, mtr *metrics.Metrics, logger *log.Logger) {
	frames := make(chan []byte, 64)
	go func() {
		buf := make([]byte, pdu.Size)
		for {
			n, err := nio.Recv(buf)
			if err != nil {
				close(frames)
				return
			}
			cp := make([]byte, n)
			copy(cp, buf[:n])
			select {
			case frames <- cp:
			case <-ctx.Done():
				return
			}
		}
	}()

	drainNotifies := func() {
		for {
			_, n, ok := eng.NextNotify()
			if !ok {
				return
			}
			mtr.ObserveNotify(n)
			logger.Printf("%s", n.String())
		}
	}

	for {
		drainNotifies()

		timer := time.NewTimer(eng.DelayToNextTimer())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case frame, open := <-frames:
			timer.Stop()
			if !open {
				return
			}
			if eng.HandlePacket(frame) < 0 {
				mtr.ObserveDrop("malformed")
			}
		case <-timer.C:
			eng.HandleTimer()
		}
	}
}
