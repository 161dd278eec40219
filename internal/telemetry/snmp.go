package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Printer-MIB and host-resources OIDs used for enrichment.
const (
	oidSysLocation   = "1.3.6.1.2.1.1.6.0"
	oidDeviceDescr   = "1.3.6.1.2.1.25.3.2.1.3.1"
	oidSerialNumber  = "1.3.6.1.2.1.43.5.1.1.17.1"
	oidSupplyDescr   = "1.3.6.1.2.1.43.11.1.1.6.1"
	oidSupplyMax     = "1.3.6.1.2.1.43.11.1.1.8.1"
	oidSupplyLevel   = "1.3.6.1.2.1.43.11.1.1.9.1"
	oidRicohSerialNo = "1.3.6.1.4.1.367.3.2.1.1.1.4.0"
)

// SNMPConn abstracts gosnmp for easier testing/mocking.
type SNMPConn interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Walk(root string, walkFn gosnmp.WalkFunc) error
	Close() error
}

// NewSNMPConn is a factory used by production code; tests can replace this
// variable to inject mock connections.
var NewSNMPConn = func(target, community string, timeout time.Duration, retries int) (SNMPConn, error) {
	snmp := &gosnmp.GoSNMP{
		Target:    target,
		Port:      161,
		Version:   gosnmp.Version2c,
		Community: community,
		Timeout:   timeout,
		Retries:   retries,
	}
	if err := snmp.Connect(); err != nil {
		return nil, err
	}
	return &gosnmpConn{snmp: snmp}, nil
}

type gosnmpConn struct {
	snmp *gosnmp.GoSNMP
}

func (c *gosnmpConn) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	return c.snmp.Get(oids)
}

func (c *gosnmpConn) Walk(root string, walkFn gosnmp.WalkFunc) error {
	return c.snmp.Walk(root, walkFn)
}

func (c *gosnmpConn) Close() error {
	if c.snmp.Conn != nil {
		return c.snmp.Conn.Close()
	}
	return nil
}

// SNMPEnricher queries printers over SNMP v2c for model, serial, location,
// and toner levels.
type SNMPEnricher struct {
	community string
	timeout   time.Duration
	retries   int
	logger    zerolog.Logger
}

// NewSNMPEnricher creates an enricher with the given community string and
// per-device timeout.
func NewSNMPEnricher(community string, timeout time.Duration, retries int) *SNMPEnricher {
	return &SNMPEnricher{
		community: community,
		timeout:   timeout,
		retries:   retries,
		logger:    log.With().Str("component", "telemetry").Logger(),
	}
}

// Collect queries one device. Missing or unparsable values are simply left
// unset; only a failure to reach the agent at all is returned as an error.
func (e *SNMPEnricher) Collect(ctx context.Context, ip string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := NewSNMPConn(ip, e.community, e.timeout, e.retries)
	if err != nil {
		return nil, fmt.Errorf("snmp connect to %s: %w", ip, err)
	}
	defer conn.Close()

	info := &Info{}

	packet, err := conn.Get([]string{oidDeviceDescr, oidSerialNumber, oidRicohSerialNo, oidSysLocation})
	if err != nil {
		return nil, fmt.Errorf("snmp get from %s: %w", ip, err)
	}

	for _, v := range packet.Variables {
		s := pduString(v)
		if s == "" {
			continue
		}
		switch strings.TrimPrefix(v.Name, ".") {
		case oidDeviceDescr:
			info.Model = &s
		case oidSerialNumber:
			info.SerialNumber = &s
		case oidRicohSerialNo:
			if info.SerialNumber == nil {
				info.SerialNumber = &s
			}
		case oidSysLocation:
			info.Location = &s
		}
	}

	e.collectSupplies(conn, ip, info)

	e.logger.Debug().
		Str("ip", ip).
		Bool("model", info.Model != nil).
		Bool("serial", info.SerialNumber != nil).
		Msg("SNMP enrichment collected")

	return info, nil
}

// collectSupplies walks the marker-supplies table and maps each entry to a
// toner color by its description. Walk errors leave the levels unset.
func (e *SNMPEnricher) collectSupplies(conn SNMPConn, ip string, info *Info) {
	descrs := map[int]string{}
	levels := map[int]int{}
	maxes := map[int]int{}

	walk := func(root string, fn func(idx int, pdu gosnmp.SnmpPDU)) {
		err := conn.Walk(root, func(pdu gosnmp.SnmpPDU) error {
			name := strings.TrimPrefix(pdu.Name, ".")
			dot := strings.LastIndex(name, ".")
			if dot < 0 {
				return nil
			}
			var idx int
			if _, err := fmt.Sscanf(name[dot+1:], "%d", &idx); err != nil {
				return nil
			}
			fn(idx, pdu)
			return nil
		})
		if err != nil {
			e.logger.Debug().Err(err).Str("ip", ip).Str("oid", root).Msg("Supply walk failed")
		}
	}

	walk(oidSupplyDescr, func(idx int, pdu gosnmp.SnmpPDU) {
		descrs[idx] = pduString(pdu)
	})
	walk(oidSupplyLevel, func(idx int, pdu gosnmp.SnmpPDU) {
		levels[idx] = pduInt(pdu)
	})
	walk(oidSupplyMax, func(idx int, pdu gosnmp.SnmpPDU) {
		maxes[idx] = pduInt(pdu)
	})

	for idx, descr := range descrs {
		level, ok := levels[idx]
		if !ok || level < 0 {
			// -2 (unknown) and -3 (some remaining) carry no usable number
			continue
		}
		pct := supplyPercent(level, maxes[idx])
		switch classifySupply(descr) {
		case "black":
			info.TonerBlack = &pct
		case "cyan":
			info.TonerCyan = &pct
		case "magenta":
			info.TonerMagenta = &pct
		case "yellow":
			info.TonerYellow = &pct
		}
	}
}

// classifySupply maps a marker-supply description to a toner color.
func classifySupply(descr string) string {
	d := strings.ToLower(descr)
	switch {
	case strings.Contains(d, "black"), strings.Contains(d, " bk"), strings.HasSuffix(d, "(k)"):
		return "black"
	case strings.Contains(d, "cyan"):
		return "cyan"
	case strings.Contains(d, "magenta"):
		return "magenta"
	case strings.Contains(d, "yellow"):
		return "yellow"
	default:
		return ""
	}
}

// supplyPercent converts a raw supply level to a percentage of its maximum.
func supplyPercent(level, max int) int {
	if max <= 0 {
		if level > 100 {
			return 100
		}
		return level
	}
	pct := level * 100 / max
	if pct > 100 {
		pct = 100
	}
	return pct
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return strings.TrimSpace(string(v))
	case string:
		return strings.TrimSpace(v)
	default:
		return ""
	}
}

func pduInt(pdu gosnmp.SnmpPDU) int {
	switch v := pdu.Value.(type) {
	case int:
		return v
	case uint:
		return int(v)
	case int64:
		return int(v)
	case uint64:
		return int(v)
	default:
		return -1
	}
}
