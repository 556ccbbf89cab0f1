//go:build !linux

package firewall

func NewManager(_, _ string) Manager {
	return NewNoOpManager()
}
