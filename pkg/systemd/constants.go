package systemd

const (
	NotifySocketEnvVar   = "NOTIFY_SOCKET"
	WatchdogUsecEnvVar   = "WATCHDOG_USEC"
	NotifyWatchdog       = "WATCHDOG=1"
	NotifyStopping       = "STOPPING=1"
	NotifyReady          = "READY=1"
	notifyStatusPrefix   = "STATUS="
	JobResultDone        = "done"
	JobModeReplace       = "replace"
	RebootTarget         = "reboot.target"
	ServiceStateActive   = "active"
	ServiceStateInactive = "inactive"
	ServiceStateFailed   = "failed"
	propertyActiveState  = "ActiveState"
	busDest              = "org.freedesktop.systemd1"
	busUnitIface         = busDest + ".Unit"
	busPath              = "/org/freedesktop/systemd1"
	busManagerIface      = busDest + ".Manager"
	methodStartUnit      = busManagerIface + ".StartUnit"
	methodRestartUnit    = busManagerIface + ".RestartUnit"
	methodPropertiesGet  = "org.freedesktop.DBus.Properties.Get"
	memberJobRemoved     = "JobRemoved"
	signalJobRemoved     = busManagerIface + "." + memberJobRemoved
	signalChannelBacklog = 10
)
