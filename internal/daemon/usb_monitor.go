package daemon

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"lcdbridge/internal/config"
	"lcdbridge/internal/logging"
)

// usbMonitor listens for udev netlink events for the cooler's USB vendor and
// reports attach and detach transitions.
type usbMonitor struct {
	logger   *slog.Logger
	vendor   string
	onAttach func(ctx context.Context) error
	onDetach func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// newUSBMonitor returns nil when hotplug monitoring is disabled.
func newUSBMonitor(cfg *config.Config, logger *slog.Logger, onAttach func(ctx context.Context) error, onDetach func()) *usbMonitor {
	if cfg == nil || !cfg.USB.HotplugEnabled {
		return nil
	}
	vendor := strings.ToLower(strings.TrimSpace(cfg.USB.VendorID))
	if vendor == "" {
		return nil
	}
	return &usbMonitor{
		logger:   logging.NewComponentLogger(logger, "usb-monitor"),
		vendor:   vendor,
		onAttach: onAttach,
		onDetach: onDetach,
	}
}

// Start begins listening for udev netlink events.
func (m *usbMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; cooler replug will need a daemon restart",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "hotplug recovery unavailable"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("usb monitor started",
		logging.String(logging.FieldEventType, "usb_monitor_started"),
		logging.String("vendor_id", m.vendor),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *usbMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("usb monitor stopped",
		logging.String(logging.FieldEventType, "usb_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *usbMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *usbMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	matcher := m.buildMatcher()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, matcher)
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "cooler replug may go unnoticed"),
			)
		}
	}
}

// buildMatcher matches whole-device USB add/remove events for the vendor.
// Kernel PRODUCT values look like "1e71/3008/100".
func (m *usbMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "^usb$",
			"DEVTYPE":   "^usb_device$",
			"PRODUCT":   "^" + regexp.QuoteMeta(m.vendor) + "/",
		},
	})
	return rules
}

func (m *usbMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	if vendorOf(uevent) != m.vendor {
		m.logger.Debug("ignoring usb event for another vendor",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	switch uevent.Action {
	case netlink.ADD:
		m.logger.Info("cooler attached",
			logging.String(logging.FieldEventType, "usb_attached"),
			logging.String("product", uevent.Env["PRODUCT"]),
		)
		if m.onAttach == nil {
			return
		}
		if err := m.onAttach(ctx); err != nil {
			logging.WarnWithContext(m.logger, "cooler re-arm after attach failed", "usb_rearm_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart the daemon if the display stays blank"),
				logging.String(logging.FieldImpact, "frames may not reach the display"),
			)
		}
	case netlink.REMOVE:
		logging.WarnWithContext(m.logger, "cooler detached", "usb_detached",
			logging.String("product", uevent.Env["PRODUCT"]),
			logging.String(logging.FieldErrorHint, "reconnect the cooler USB cable"),
			logging.String(logging.FieldImpact, "device writes fail until the cooler returns"),
		)
		if m.onDetach != nil {
			m.onDetach()
		}
	}
}

// vendorOf reads the vendor id from PRODUCT, falling back to udev's ID_VENDOR_ID.
func vendorOf(uevent netlink.UEvent) string {
	if product := uevent.Env["PRODUCT"]; product != "" {
		vendor, _, _ := strings.Cut(product, "/")
		return strings.ToLower(vendor)
	}
	return strings.ToLower(uevent.Env["ID_VENDOR_ID"])
}
