package tor

import "errors"

var (
	// ErrProxyNotTor is returned when the proxy answers but does not speak
	// SOCKS5 the way Tor does.
	ErrProxyNotTor = errors.New("proxy is not a Tor SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// could be made. Tor is usually not running.
	ErrProxyCannotConnect = errors.New("cannot connect to Tor proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to Tor proxy")

	// ErrInvalidProxyAddress is returned for addresses not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrNotRunning is returned when a client is requested from an embedded
	// daemon that has not been started.
	ErrNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus is the outcome of Client.CheckConnection.
type ProxyStatus int

const (
	// ProxyStatusOK means the proxy is a working Tor SOCKS5 proxy.
	ProxyStatusOK ProxyStatus = iota
	// ProxyStatusWrongType means something answered that is not Tor.
	ProxyStatusWrongType
	// ProxyStatusCannotConnect means the proxy could not be reached.
	ProxyStatusCannotConnect
	// ProxyStatusTimeout means the handshake timed out.
	ProxyStatusTimeout
)

var proxyStatusInfo = map[ProxyStatus]struct {
	text string
	err  error
}{
	ProxyStatusOK:            {"OK", nil},
	ProxyStatusWrongType:     {"wrong type (not Tor)", ErrProxyNotTor},
	ProxyStatusCannotConnect: {"cannot connect", ErrProxyCannotConnect},
	ProxyStatusTimeout:       {"timeout", ErrProxyTimeout},
}

func (s ProxyStatus) String() string {
	if info, ok := proxyStatusInfo[s]; ok {
		return info.text
	}
	return "unknown"
}

// Error maps the status to its sentinel error. OK maps to nil and an
// unrecognised status is treated as unreachable.
func (s ProxyStatus) Error() error {
	if info, ok := proxyStatusInfo[s]; ok {
		return info.err
	}
	return ErrProxyCannotConnect
}
