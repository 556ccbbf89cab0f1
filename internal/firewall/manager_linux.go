//go:build linux

package firewall

import (
	"bytes"
	"fmt"
	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"
	"sync"
)

type managerLinux struct {
	mu    sync.Mutex
	conn  *nftables.Conn
	table *nftables.Table
	chain *nftables.Chain
	ready bool
}

func NewManager(tableName, chainName string) Manager {
	table := &nftables.Table{
		Name:   tableName,
		Family: nftables.TableFamilyIPv4,
	}
	chain := &nftables.Chain{
		Name:     chainName,
		Table:    table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookInput,
		Priority: nftables.ChainPriorityFilter,
	}
	return &managerLinux{
		conn:  &nftables.Conn{},
		table: table,
		chain: chain,
	}
}

// ensure creates the table and chain once per process and drops rules left by an earlier run
func (m *managerLinux) ensure() {
	if m.ready {
		return
	}
	m.conn.AddTable(m.table)
	m.conn.AddChain(m.chain)
	m.conn.FlushChain(m.chain)
	m.ready = true
}

func tcpPortExprs(port uint) []expr.Any {
	return []expr.Any{
		&expr.Meta{
			Key:      expr.MetaKeyL4PROTO,
			Register: 1,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     []byte{unix.IPPROTO_TCP},
		},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       2,
			Len:          2,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     portBytes(port),
		},
	}
}

func (m *managerLinux) BlockPortAccess(port uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()

	m.conn.AddRule(&nftables.Rule{
		Table: m.table,
		Chain: m.chain,
		Exprs: append(tcpPortExprs(port), &expr.Verdict{Kind: expr.VerdictDrop}),
	})
	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("failed to block port %d: %w", port, err)
	}
	return nil
}

func (m *managerLinux) WhitelistIP(ip string, port uint) error {
	addr, err := parseIPv4(ip)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()

	exprs := append(tcpPortExprs(port),
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseNetworkHeader,
			Offset:       12,
			Len:          4,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     []byte(addr),
		},
		&expr.Verdict{Kind: expr.VerdictAccept},
	)

	// accept rules go in front of the drop rule of the port
	m.conn.InsertRule(&nftables.Rule{
		Table: m.table,
		Chain: m.chain,
		Exprs: exprs,
	})
	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("failed to whitelist IP %s for port %d: %w", ip, port, err)
	}
	return nil
}

func (m *managerLinux) BlacklistIP(ip string, port uint) error {
	addr, err := parseIPv4(ip)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rules, err := m.conn.GetRules(m.table, m.chain)
	if err != nil {
		return fmt.Errorf("failed to retrieve rules: %w", err)
	}

	wantPort := portBytes(port)
	for _, rule := range rules {
		var matchIP, matchPort bool
		for _, next := range rule.Exprs {
			cmp, ok := next.(*expr.Cmp)
			if !ok || cmp.Op != expr.CmpOpEq {
				continue
			}
			switch {
			case len(cmp.Data) == 4 && bytes.Equal(cmp.Data, addr):
				matchIP = true
			case len(cmp.Data) == 2 && bytes.Equal(cmp.Data, wantPort):
				matchPort = true
			}
		}

		if matchIP && matchPort {
			if err := m.conn.DelRule(rule); err != nil {
				return err
			}
		}
	}

	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("failed to blacklist IP %s for port %d: %w", ip, port, err)
	}
	return nil
}
