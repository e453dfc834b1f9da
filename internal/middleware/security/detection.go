// Package security holds the HTTP hardening middleware: response headers,
// client IP resolution behind trusted proxies and scanner detection.
package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"moneybook/internal/log"
)

// Reason names why a request was flagged.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonPathPattern   Reason = "path_pattern"
	ReasonQueryPattern  Reason = "query_pattern"
	ReasonScannerAgent  Reason = "scanner_agent"
	ReasonMethod        Reason = "method"
	ReasonLongURL       Reason = "long_url"
	ReasonForwardedHops Reason = "forwarded_hops"
)

const maxURLLength = 2048

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
	}
	unusualMethods = map[string]bool{
		"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true,
	}
)

// Detector handles suspicious request detection
type Detector struct {
	logger         *log.Logger
	trustedProxies []*net.IPNet
	flagged        *prometheus.CounterVec
}

// NewDetector creates a detector trusting loopback and private networks as
// proxies.
func NewDetector(logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Discard()
	}
	return &Detector{
		logger: logger.WithComponent(log.ComponentSecurity),
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("::1/128"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
		},
		flagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moneybook",
			Subsystem: "security",
			Name:      "suspicious_requests_total",
			Help:      "Requests flagged as suspicious, by reason.",
		}, []string{"reason"}),
	}
}

// Collector exposes the detector's counters for registration.
func (d *Detector) Collector() prometheus.Collector {
	return d.flagged
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// Inspect returns the first reason r looks like an attack, or ReasonNone.
func (d *Detector) Inspect(r *http.Request) Reason {
	if unusualMethods[r.Method] {
		return ReasonMethod
	}
	if len(r.URL.String()) > maxURLLength {
		return ReasonLongURL
	}
	if containsAny(strings.ToLower(r.URL.Path), suspiciousPatterns) {
		return ReasonPathPattern
	}
	if containsAny(strings.ToLower(r.URL.RawQuery), suspiciousPatterns) {
		return ReasonQueryPattern
	}
	if containsAny(strings.ToLower(r.Header.Get("User-Agent")), scannerAgents) {
		return ReasonScannerAgent
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return ReasonForwardedHops
	}
	return ReasonNone
}

func containsAny(s string, patterns []string) bool {
	if s == "" {
		return false
	}
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Middleware logs and counts suspicious requests. Unusual methods are
// answered with 405 and probing paths with 404; everything else continues.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reason := d.Inspect(r)
		if reason == ReasonNone {
			next.ServeHTTP(w, r)
			return
		}
		d.flagged.WithLabelValues(string(reason)).Inc()
		log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
			"reason", string(reason),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, d.ExtractClientIP(r),
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		switch reason {
		case ReasonMethod:
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		case ReasonPathPattern, ReasonLongURL:
			http.NotFound(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// ExtractClientIP returns the client address, honouring X-Forwarded-For and
// X-Real-IP only when the direct peer is a trusted proxy. X-Forwarded-For is
// read from the right and the first hop that is not a trusted proxy is the
// client.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil {
		return directIP
	}

	if d.isTrustedProxy(parsedDirectIP) {
		forwarded, complete := d.forwardedClient(r.Header.Values("X-Forwarded-For"))
		if complete {
			return forwarded
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
			return xri
		}
		if forwarded != "" {
			return forwarded
		}
	}
	return directIP
}

// forwardedClient walks the X-Forwarded-For hops right to left. It returns
// the first untrusted hop with complete set. When every hop is a trusted
// proxy, or an unparsable hop ends the walk, it returns the leftmost trusted
// hop seen, possibly empty.
func (d *Detector) forwardedClient(headers []string) (string, bool) {
	var hops []string
	for _, h := range headers {
		hops = append(hops, strings.Split(h, ",")...)
	}
	last := ""
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		ip := net.ParseIP(hop)
		if ip == nil {
			break
		}
		if !d.isTrustedProxy(ip) {
			return hop, true
		}
		last = hop
	}
	return last, false
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}
