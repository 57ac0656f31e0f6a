// Command motion-band reads a wrist-worn motion sensor, drives a haptic
// alert while the wearer is active, and streams filtered motion to a relay
// server configured through a WiFi provisioning portal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/motion-band/internal/gpio"
	"github.com/sweeney/motion-band/internal/haptic"
	"github.com/sweeney/motion-band/internal/logic"
	"github.com/sweeney/motion-band/internal/motion"
	"github.com/sweeney/motion-band/internal/mqtt"
	"github.com/sweeney/motion-band/internal/prefs"
	"github.com/sweeney/motion-band/internal/provision"
	"github.com/sweeney/motion-band/internal/session"
	"github.com/sweeney/motion-band/internal/status"
	"github.com/sweeney/motion-band/internal/web"
	"github.com/sweeney/motion-band/internal/wifi"
)

// options holds the parsed command line.
type options struct {
	poll      time.Duration
	debounce  time.Duration
	threshold float64
	heartbeat time.Duration
	calibrate time.Duration
	channels  int

	hapticPin int
	gpioChip  string
	bus       motion.BusConfig

	broker   string
	httpAddr string
	prefs    string
	ap       wifi.APConfig
	apIface  string
	staIface string
}

func main() {
	ap := wifi.DefaultAPConfig()
	var o options
	var i2cAddr uint

	flag.DurationVar(&o.poll, "poll", motion.SampleInterval, "Sensor sampling interval")
	flag.DurationVar(&o.debounce, "debounce", 250*time.Millisecond, "Activity debounce duration")
	flag.Float64Var(&o.threshold, "threshold", logic.DefaultThreshold, "Motion above 1 g, in m/s^2, that counts as active")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&o.calibrate, "calibrate", motion.DefaultCalibrationWindow, "Calibration window at startup (0 to skip)")
	flag.IntVar(&o.channels, "channels", motion.MaxChannels, "Sensor channels: 3 (accel) or 6 (accel+gyro)")
	flag.IntVar(&o.hapticPin, "haptic-pin", gpio.DefaultHapticPin, "BCM pin number driving the vibration motor")
	flag.StringVar(&o.gpioChip, "gpio-chip", gpio.DefaultChip, "GPIO character device")
	flag.StringVar(&o.bus.Bus, "i2c-bus", motion.DefaultBus, "I2C bus name")
	flag.UintVar(&i2cAddr, "i2c-addr", motion.DefaultAddress, "I2C address of the MPU6050")
	flag.IntVar(&o.bus.SDAPin, "sda-pin", motion.DefaultSDAPin, "BCM pin wired to SDA (informational)")
	flag.IntVar(&o.bus.SCLPin, "scl-pin", motion.DefaultSCLPin, "BCM pin wired to SCL (informational)")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.StringVar(&o.httpAddr, "http", web.DefaultAddr, "Portal listen address")
	flag.StringVar(&o.prefs, "prefs", "/var/lib/motion-band/prefs.db", "Preferences database path")
	flag.StringVar(&ap.SSID, "ap-ssid", ap.SSID, "Access point SSID")
	flag.StringVar(&ap.Password, "ap-pass", ap.Password, "Access point passphrase")
	flag.StringVar(&o.apIface, "ap-iface", "ap0", "Interface hosting the access point (must differ from -sta-iface)")
	flag.StringVar(&o.staIface, "sta-iface", "wlan0", "Interface joining the user's network")

	flag.Parse()

	o.bus.Address = uint16(i2cAddr)
	o.ap = ap
	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// validate rejects settings that cannot work before any hardware is opened.
func (o options) validate() error {
	if o.poll < motion.SampleInterval {
		return fmt.Errorf("poll interval %v is shorter than the sensor cadence %v", o.poll, motion.SampleInterval)
	}
	if o.apIface == o.staIface {
		return fmt.Errorf("%w: -ap-iface and -sta-iface are both %q", wifi.ErrSameInterface, o.apIface)
	}
	return nil
}

func run(o options) error {
	if err := o.validate(); err != nil {
		return err
	}

	// Initialize sensor
	log.Printf("motion: opening MPU6050 on i2c bus %s addr %#x (SDA=%d SCL=%d)", o.bus.Bus, o.bus.Address, o.bus.SDAPin, o.bus.SCLPin)
	sensor, err := motion.OpenMPU6050(o.bus)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer sensor.Close()

	cfg := motion.DefaultConfig()
	cfg.Channels = o.channels
	pipeline, err := motion.NewPipeline(sensor, cfg)
	if err != nil {
		return err
	}

	// Initialize haptic output
	out, err := gpio.NewRealOutput(o.gpioChip, o.hapticPin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer out.Close()
	alert, err := haptic.NewAlert(out)
	if err != nil {
		return err
	}

	// Preferences and network
	store, err := prefs.OpenSQLite(o.prefs)
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}
	defer store.Close()

	radio, err := wifi.NewNMCLIRadio(o.apIface, o.staIface)
	if err != nil {
		return err
	}
	defer radio.Close()

	streamer := session.NewStreamer(session.DefaultPort)
	defer streamer.Close()

	pcfg := provision.DefaultConfig()
	pcfg.AP = o.ap
	provisioner := provision.New(radio, store, streamer, pcfg)

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(o.broker)
		if err != nil {
			log.Printf("mqtt: %v; continuing without broker", err)
		} else {
			publisher, mqttStatus = p, p
		}
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      o.poll.Milliseconds(),
		DebounceMs:  o.debounce.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Threshold:   o.threshold,
		Channels:    o.channels,
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		APSSID:      o.ap.SSID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if o.calibrate > 0 {
		log.Printf("motion: calibrating for %v, keep the band still", o.calibrate)
		if err := pipeline.Calibrate(ctx, o.calibrate); err != nil {
			if ctx.Err() != nil {
				log.Printf("interrupted during calibration, shutting down")
				return nil
			}
			return fmt.Errorf("calibrate: %w", err)
		}
	}

	if err := provisioner.Start(ctx, time.Now()); err != nil {
		return fmt.Errorf("start provisioning: %w", err)
	}
	tracker.SetNetwork(provisioner.Status())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	// Start portal
	srv := web.New(o.httpAddr, provisioner, tracker)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()
	defer srv.Shutdown(context.Background())
	log.Printf("portal listening on %s (AP %q at %v)", o.httpAddr, o.ap.SSID, o.ap.Address)

	log.Printf("started: poll=%v debounce=%v threshold=%.2f channels=%d heartbeat=%v", o.poll, o.debounce, o.threshold, o.channels, o.heartbeat)

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	l := loop{
		pipeline:    pipeline,
		detector:    logic.NewDetector(o.threshold, o.debounce, time.Now()),
		alert:       alert,
		provisioner: provisioner,
		frames:      streamer,
		publisher:   publisher,
		mqttStatus:  mqttStatus,
		tracker:     tracker,
		heartbeat:   o.heartbeat,
		recalibrate: o.calibrate,
	}
	return runLoop(l, time.Now, ticker.C, sigCh)
}

// frameSink receives filtered samples for the data session.
type frameSink interface {
	Send(ts time.Time, sample motion.Sample) bool
	ID() string
}

// loop holds the collaborators driven by runLoop.
type loop struct {
	pipeline    *motion.Pipeline
	detector    *logic.Detector
	alert       *haptic.Alert
	provisioner *provision.Provisioner
	frames      frameSink
	publisher   mqtt.Publisher
	mqttStatus  mqtt.ConnectionStatus
	tracker     *status.Tracker
	heartbeat   time.Duration

	// recalibrate is the window used when SIGHUP requests a new offset.
	recalibrate time.Duration
}

func runLoop(l loop, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	var cal *motion.Calibration

	for {
		select {
		case s := <-sig:
			if s == syscall.SIGHUP {
				cal = l.beginCalibration(cal, now())
				continue
			}
			l.shutdown(s, now())
			return nil

		case <-tick:
			t := now()

			if cal != nil {
				done, err := cal.Step(t)
				if err != nil {
					log.Printf("motion: recalibration failed: %v", err)
					cal.Cancel()
					cal = nil
				} else if done {
					log.Printf("motion: recalibrated over %d samples, offset=%.3f", cal.Samples(), l.pipeline.Offset())
					cal = nil
				}
			} else {
				l.sense(t)
			}

			// No alerts while the band is being held still for calibration.
			active := cal == nil && l.detector.Active()
			if err := l.alert.Update(active, t); err != nil {
				log.Printf("haptic: %v", err)
			}

			l.advanceNetwork(t)
			l.checkHeartbeat(t)
			l.updateTracker()
		}
	}
}

// sense reads the pipeline, feeds the detector and forwards the frame.
func (l loop) sense(t time.Time) {
	filtered, err := l.pipeline.Read()
	if err != nil {
		log.Printf("sensor read error: %v", err)
		return
	}

	events := l.detector.Process(logic.Input{Magnitude: filtered.Dynamic(), Time: t})
	for _, event := range events {
		log.Printf("event: %s (magnitude=%.2f)", event.Type, event.Magnitude)
		if err := l.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
		}
	}

	l.frames.Send(t, filtered)
	if l.tracker != nil {
		l.tracker.SetMotion(status.Motion{
			Calibrated: l.pipeline.Calibrated(),
			Offset:     l.pipeline.Offset(),
			Filtered:   filtered,
			Magnitude:  filtered.Dynamic(),
		})
	}
}

// advanceNetwork ticks the provisioner and reports what it resolved.
func (l loop) advanceNetwork(t time.Time) {
	res, ok := l.provisioner.Tick(t)
	if !ok {
		return
	}
	if !res.Connected || res.Origin != provision.OriginPortal {
		return
	}

	event := mqtt.SystemEvent{Timestamp: t, Event: mqtt.EventProvisioned}
	if l.tracker != nil {
		l.tracker.SetNetwork(l.provisioner.Status())
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), mqtt.EventProvisioned, "")
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish provisioned event: %v", err)
	}
}

func (l loop) checkHeartbeat(t time.Time) {
	hbData := l.detector.CheckHeartbeat(t, l.heartbeat)
	if hbData == nil {
		return
	}
	log.Printf("heartbeat: uptime=%v alert_on=%d alert_off=%d", hbData.Uptime, hbData.Counts.AlertOn, hbData.Counts.AlertOff)

	hbEvent := mqtt.SystemEvent{Timestamp: hbData.Timestamp, Event: mqtt.EventHeartbeat}
	if l.tracker != nil {
		l.updateTracker()
		hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), mqtt.EventHeartbeat, "")
	}
	if err := l.publisher.PublishSystem(hbEvent); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

// updateTracker copies state for HTTP consumers.
func (l loop) updateTracker() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.detector.CurrentState(), l.detector.IsBaselined(), l.detector.Counts())
	l.tracker.SetHaptic(l.alert.Status().State)
	l.tracker.SetNetwork(l.provisioner.Status())
	l.tracker.SetSession(l.frames.ID())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l loop) beginCalibration(cur *motion.Calibration, t time.Time) *motion.Calibration {
	if cur != nil {
		log.Printf("motion: recalibration already running")
		return cur
	}
	cal, err := l.pipeline.BeginCalibration(l.recalibrate, t)
	if err != nil {
		log.Printf("motion: recalibration: %v", err)
		return nil
	}
	log.Printf("motion: recalibrating for %v, keep the band still", l.recalibrate)
	return cal
}

// shutdown stops the motor, abandons any connect attempt and announces the
// shutdown.
func (l loop) shutdown(s os.Signal, t time.Time) {
	log.Printf("received %v, shutting down", s)
	if err := l.alert.Update(false, t); err != nil {
		log.Printf("haptic: %v", err)
	}
	l.provisioner.Cancel()

	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: t,
		Event:     mqtt.EventShutdown,
		Reason:    signalName,
		Retained:  true,
	}
	if l.tracker != nil {
		l.updateTracker()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), mqtt.EventShutdown, signalName)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}
