// Package metrics implements the telemetry fan-out: a fire-and-forget
// UDP sender used by the agent, and the complementary monitor-side
// receiver that decodes the same wire format.
//
// The wire format is a bespoke "<key> <value>" ASCII line, not the
// dogstatsd protocol any pack library speaks, so this package talks to
// the stdlib net package directly rather than through a metrics client
// library (see DESIGN.md).
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// RequiredKeys is the fixed set of metric keys the round logic
// publishes as zero when it has nothing to report for them, so that
// absence is distinguishable from a true zero observation.
var RequiredKeys = []string{
	"FilesToShip",
	"FailedToGetSyncList",
	"FullDirectoryShip",
	"RotatedDuringShip",
	"NumFilesShipped",
	"LostDuringShip",
	"FailedOverAgents",
}

// Client is the capability contract used by the rest of the agent.
type Client interface {
	Send(key string, value float64)
}

// Noop is used when telemetry is disabled (monitor_port == 0).
type Noop struct{}

func (Noop) Send(string, float64) {}

// UDPClient sends each metric as its own UDP datagram to
// 127.0.0.1:<port>. Send failures are swallowed: metrics are
// loss-tolerant by design.
type UDPClient struct {
	addr *net.UDPAddr
	log  *logrus.Entry
}

// New returns a Noop client when port is 0, otherwise a UDPClient
// targeting 127.0.0.1:port.
func New(port int, log *logrus.Entry) Client {
	if port == 0 {
		return Noop{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &UDPClient{
		addr: &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port},
		log:  log,
	}
}

// Send formats "<key> <value>" and emits it as a single datagram. A
// short-lived socket is opened per send; this is correct (not merely
// tolerable) because datagrams are idempotent and loss-tolerant.
func (c *UDPClient) Send(key string, value float64) {
	conn, err := net.DialUDP("udp", nil, c.addr)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Debug("metrics: dial failed, dropping datapoint")
		return
	}
	defer conn.Close()

	payload := fmt.Sprintf("%s %s", key, formatValue(value))
	if _, err := conn.Write([]byte(payload)); err != nil {
		c.log.WithError(err).WithField("key", key).Debug("metrics: send failed, dropping datapoint")
	}
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EmitRound sends every key in RequiredKeys, substituting 0 for any key
// absent from observed, so a consumer can always distinguish "reported
// zero" from "agent is down".
func EmitRound(client Client, observed map[string]float64) {
	for _, key := range RequiredKeys {
		v, ok := observed[key]
		if !ok {
			v = 0
		}
		client.Send(key, v)
	}
}

// Consumer receives decoded (key, value) pairs on the monitor side.
// Forwarding them to the cluster telemetry system is out of core
// scope; this package only decodes the wire format.
type Consumer func(key string, value float64)

// maxDatagramSize is the documented upper bound on a telemetry
// payload.
const maxDatagramSize = 250

// Serve listens for UDP datagrams on 127.0.0.1:port, decodes each as
// "key value", and hands the pair to consumer. It runs until the
// connection is closed or an unrecoverable read error occurs.
func Serve(port int, consumer Consumer, log *logrus.Entry) error {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer conn.Close()

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return fmt.Errorf("metrics monitor read: %w", err)
		}

		key, value, ok := decode(buf[:n])
		if !ok {
			log.WithField("payload", string(buf[:n])).Warn("metrics monitor: malformed datagram")
			continue
		}
		consumer(key, value)
	}
}

func decode(payload []byte) (key string, value float64, ok bool) {
	scanner := bufio.NewScanner(strings.NewReader(string(payload)))
	scanner.Buffer(make([]byte, maxDatagramSize), maxDatagramSize)
	if !scanner.Scan() {
		return "", 0, false
	}
	fields := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 2)
	if len(fields) != 2 {
		return "", 0, false
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return "", 0, false
	}
	return fields[0], v, true
}
