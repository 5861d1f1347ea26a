package net

import (
	"fmt"

	"github.com/LeoCommon/tracker/pkg/system/dbuscon"
)

// This maps to the NetworkManager connection.type
type NetworkInterfaceType string

const (
	Ethernet NetworkInterfaceType = "802-3-ethernet"
	WiFi     NetworkInterfaceType = "802-11-wireless"
	GSM      NetworkInterfaceType = "gsm"
)

const (
	DefaultWifiInterface = "wlan0"
	ProcWirelessPath     = "/proc/net/wireless"
)

// WifiStatus is a snapshot of the wireless link
type WifiStatus struct {
	Interface string
	SSID      string
	// RSSI is the signal level in dBm as reported by the driver
	RSSI int
	// Quality is the RSSI mapped to 0..100
	Quality int
	// Strength is the NetworkManager access point strength in percent
	Strength uint8
	State    string
}

func (w WifiStatus) String() string {
	return fmt.Sprintf("%s ssid=%q rssi=%ddBm quality=%d%% state=%s", w.Interface, w.SSID, w.RSSI, w.Quality, w.State)
}

type NetworkService interface {
	// WifiStatus reads the current state of the wireless link
	WifiStatus() (WifiStatus, error)
	GetConnectionStateStr(NetworkInterfaceType) (string, error)
	HasConnectivity() bool
	Shutdown()

	// Private
	initialize() error
}

type ConnectionNotAvailable struct {
	connectionType NetworkInterfaceType // optional
}

func (e *ConnectionNotAvailable) Error() string {
	return fmt.Sprintf("connection with type %v: not available", string(e.connectionType))
}

func (e *ConnectionNotAvailable) Is(target error) bool {
	_, ok := target.(*ConnectionNotAvailable)
	return ok
}

// NewService connects to NetworkManager, wifiInterface selects the wireless device
func NewService(client *dbuscon.Client, wifiInterface string) (NetworkService, error) {
	if client == nil {
		return nil, &dbuscon.NotConnectedError{}
	}

	if _, ok := client.Connected(); !ok {
		return nil, &dbuscon.NotConnectedError{}
	}

	if wifiInterface == "" {
		wifiInterface = DefaultWifiInterface
	}

	e := &networkDbusService{iface: wifiInterface, procPath: ProcWirelessPath}
	return e, e.initialize()
}
