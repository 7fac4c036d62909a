//go:build !windows && !darwin
// +build !windows,!darwin

package status

// DefaultConnector reports ErrUnsupported: PowerPoint has no automation
// interface here. Use a RemoteSource pointed at a Windows or macOS host.
func DefaultConnector() Connector {
	return ConnectorFunc(func() (Session, error) {
		return nil, ErrUnsupported
	})
}
