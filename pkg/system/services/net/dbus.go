package net

import (
	gonm "github.com/Wifx/gonetworkmanager/v2"
	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/log"
)

type networkDbusService struct {
	nm gonm.NetworkManager

	// wireless interface name and the proc file the rssi is read from
	iface    string
	procPath string
}

// WifiStatus combines the NetworkManager view of the access point with the
// driver signal level, the quality is derived from the latter.
func (n *networkDbusService) WifiStatus() (WifiStatus, error) {
	status := WifiStatus{Interface: n.iface}

	state, err := n.GetConnectionStateStr(WiFi)
	status.State = state
	if err != nil {
		return status, err
	}

	if ap := n.activeAccessPoint(); ap != nil {
		if ssid, err := ap.GetPropertySSID(); err == nil {
			status.SSID = ssid
		}
		if strength, err := ap.GetPropertyStrength(); err == nil {
			status.Strength = strength
		}
	}

	rssi, err := readSignalLevel(n.procPath, n.iface)
	if err != nil {
		log.Warn("could not read signal level", zap.String("interface", n.iface), zap.Error(err))
		return status, err
	}

	status.RSSI = rssi
	status.Quality = RSSIQuality(rssi)
	return status, nil
}

func (n *networkDbusService) activeAccessPoint() gonm.AccessPoint {
	dev, err := n.nm.GetDeviceByIpIface(n.iface)
	if err != nil {
		log.Debug("wireless device not found", zap.String("interface", n.iface), zap.Error(err))
		return nil
	}

	wdev, err := gonm.NewDeviceWireless(dev.GetPath())
	if err != nil {
		log.Debug("device is not wireless", zap.String("interface", n.iface), zap.Error(err))
		return nil
	}

	ap, err := wdev.GetPropertyActiveAccessPoint()
	if err != nil {
		return nil
	}

	return ap
}

// Obtain all active connections in the system
func (n *networkDbusService) getActiveConnections() []gonm.ActiveConnection {
	activeConnections, err := n.nm.GetPropertyActiveConnections()
	if err != nil {
		log.Error("Could not get active connections from NetworkManager", zap.Error(err))
		return nil
	}

	return activeConnections
}

func (n *networkDbusService) getActiveConnectionByType(t NetworkInterfaceType) gonm.ActiveConnection {
	for _, con := range n.getActiveConnections() {
		conT, err := con.GetPropertyType()
		if err != nil {
			log.Warn("Skipping active network connections due to error", zap.Error(err))
			continue
		}

		if conT == string(t) {
			return con
		}
	}

	return nil
}

// Gets the connection state for a specified type
func (n *networkDbusService) GetConnectionStateByType(netifType NetworkInterfaceType) (gonm.NmActiveConnectionState, error) {
	ac := n.getActiveConnectionByType(netifType)
	if ac == nil {
		return gonm.NmActiveConnectionStateUnknown, &ConnectionNotAvailable{netifType}
	}

	return ac.GetPropertyState()
}

func activeConnectionStateToString(r gonm.NmActiveConnectionState) string {
	switch r {
	case gonm.NmActiveConnectionStateUnknown:
		return "unknown"
	case gonm.NmActiveConnectionStateActivating:
		return "preparing"
	case gonm.NmActiveConnectionStateActivated:
		return "active"
	case gonm.NmActiveConnectionStateDeactivating:
		return "deactivating"
	case gonm.NmActiveConnectionStateDeactivated:
		return "deactivated"
	}

	// Fallback
	return "unknown_nm_broken"
}

// Returns the connection state of the selected type as String
func (n *networkDbusService) GetConnectionStateStr(netifType NetworkInterfaceType) (string, error) {
	r, err := n.GetConnectionStateByType(netifType)
	if err != nil {
		return "not_configured", err
	}

	return activeConnectionStateToString(r), nil
}

// Checks if the system has at-least one functioning active connection
func (n *networkDbusService) hasSingleActiveConnection() bool {
	for _, con := range n.getActiveConnections() {
		state, err := con.GetPropertyState()

		// Bail if we found one active connection
		if err == nil && state == gonm.NmActiveConnectionStateActivated {
			return true
		}
	}

	return false
}

// Checks if the overall system has connectivity
func (n *networkDbusService) HasConnectivity() bool {
	// Leverage the connectivity check if available
	checkAvailable, err := n.nm.GetPropertyConnectivityCheckEnabled()
	if err != nil || !checkAvailable {
		log.Debug("NM does not have connectivity checking enabled", zap.Error(err))

		// Fall-back to checking if there is a single active connection
		return n.hasSingleActiveConnection()
	}

	nmConnectivity, err := n.nm.GetPropertyConnectivity()
	if err != nil {
		log.Error("failure during connectivity check", zap.Error(err))
		return false
	}

	log.Debug("connectivity check finished", zap.String("state", nmConnectivity.String()))
	return nmConnectivity == gonm.NmConnectivityFull
}

func (n *networkDbusService) Shutdown() {
}

func (n *networkDbusService) initialize() error {
	nm, err := gonm.NewNetworkManager()
	if err != nil {
		return err
	}

	n.nm = nm
	return nil
}
