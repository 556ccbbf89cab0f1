package firewall

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Manager opens and closes TCP ports of this host to single IPv4 addresses
type Manager interface {
	BlockPortAccess(port uint) error
	WhitelistIP(ip string, port uint) error
	BlacklistIP(ip string, port uint) error
}

type noOpManager struct{}

func NewNoOpManager() Manager {
	return &noOpManager{}
}

func (n noOpManager) BlockPortAccess(uint) error {
	return nil
}

func (n noOpManager) WhitelistIP(ip string, _ uint) error {
	_, err := parseIPv4(ip)
	return err
}

func (n noOpManager) BlacklistIP(ip string, _ uint) error {
	_, err := parseIPv4(ip)
	return err
}

func parseIPv4(ip string) (net.IP, error) {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return nil, fmt.Errorf("invalid IPv4 address: %s", ip)
	}
	return parsed, nil
}

func portBytes(port uint) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(port))
	return b
}
