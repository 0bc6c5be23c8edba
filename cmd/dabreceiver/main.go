// Command dabreceiver wires the synchronization/OFDM-demodulation core
// to a real sample source and a control/monitoring surface. Grounded on
// the teacher's cmd/server/main.go: flag parsing, a device-init/
// deferred-terminate pair, a signal-driven graceful shutdown, then a
// blocking server Start().
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dabsdr/dabcore/internal/control"
	"github.com/dabsdr/dabcore/internal/dab"
	"github.com/dabsdr/dabcore/internal/dabparams"
	"github.com/dabsdr/dabcore/internal/interleave"
	"github.com/dabsdr/dabcore/internal/metrics"
	"github.com/dabsdr/dabcore/internal/ofdm"
	"github.com/dabsdr/dabcore/internal/sdrio"
)

func main() {
	device := flag.String("device", "portaudio", "sample source: portaudio")
	mode := flag.Int("mode", 1, "DAB transmission mode (1-4)")
	sampleRate := flag.Float64("sample-rate", 2048000, "device sample rate in Hz")
	framesPerBuf := flag.Int("frames-per-buf", 2048, "PortAudio frames per callback")
	scanMode := flag.Bool("scan-mode", false, "enable scan mode (noSignalFound after 5 failed null searches)")
	threaded := flag.Bool("threaded", true, "run the OFDM decoder on a dedicated worker goroutine")
	controlAddr := flag.String("control-addr", "127.0.0.1:8080", "control/event HTTP+WebSocket listen address")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:9100", "Prometheus metrics listen address")
	configPath := flag.String("config", "", "optional YAML config file, overriding flag defaults")
	flag.Parse()

	cfg := Config{
		Device:      *device,
		Mode:        *mode,
		SampleRate:  int(*sampleRate),
		ControlAddr: *controlAddr,
		MetricsAddr: *metricsAddr,
		ScanMode:    *scanMode,
	}
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	params, err := dabparams.New(dabparams.Mode(cfg.Mode))
	if err != nil {
		log.Fatalf("dabparams: %v", err)
	}

	dev, closeDev, err := openDevice(cfg, *framesPerBuf)
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	defer closeDev()

	reader := sdrio.NewReader(dev, params.Tu)
	mapper := interleave.New(params)

	m := metrics.New()
	fic := &logFIC{}
	msc := &logMSC{}

	decoder, err := ofdm.New(params, mapper, fic, msc, *threaded, func(db int) {
		m.SetSNR(db)
	})
	if err != nil {
		log.Fatalf("ofdm.New: %v", err)
	}

	processor := dab.New(params, reader, decoder)
	processor.SetScanMode(cfg.ScanMode)

	hub := control.NewHub()
	processor.OnStateChange(func(from, to dab.SyncState) {
		m.ObserveStateChange(to.String())
		hub.BroadcastState(from.String(), to.String())
	})
	processor.OnSynced(func(synced bool) {
		fic.synced.Store(synced)
		m.SetSynced(synced)
		hub.BroadcastSynced(synced)
	})
	processor.OnSyncLost(func() {
		m.IncSyncLost()
		hub.BroadcastSyncLost()
	})
	processor.OnNoSignalFound(func() {
		m.IncNoSignalFound()
		hub.BroadcastNoSignalFound()
	})

	handlers := control.NewHandlers(processor, hub)
	controlSrv := control.NewServer(cfg.ControlAddr, handlers, hub)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("metrics: listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("metrics server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		processor.Stop()
		os.Exit(0)
	}()

	processor.Start()
	log.Printf("dabreceiver: mode %s, device %s", params.Mode, cfg.Device)
	if err := controlSrv.Start(); err != nil {
		log.Fatalf("control server: %v", err)
	}
}

// openDevice opens the sample source named by cfg.Device and returns a
// Device plus a cleanup function. PortAudio is the only backend wired
// to a concrete driver here; hz.tools/sdr-backed devices (internal/
// sdrio.SDRDevice) require an already-opened hz.tools/sdr.Sdr, which is
// driver-specific (RTL-SDR, SoapySDR, ...) and therefore left to a
// caller that imports the driver package it needs.
func openDevice(cfg Config, framesPerBuf int) (sdrio.Device, func(), error) {
	switch cfg.Device {
	case "portaudio":
		if err := sdrio.InitPortAudio(); err != nil {
			return nil, nil, err
		}
		dev, err := sdrio.OpenPortAudioInput(float64(cfg.SampleRate), framesPerBuf)
		if err != nil {
			sdrio.TerminatePortAudio()
			return nil, nil, err
		}
		return dev, func() {
			dev.Close()
			sdrio.TerminatePortAudio()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported device backend: %s", cfg.Device)
	}
}
