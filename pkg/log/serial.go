package log

import (
	"go.bug.st/serial"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const DefaultSerialBaudrate = 115200

// serialConsole keeps the port open for the lifetime of the logger
var serialConsole serial.Port

// InitWithSerial sets up the logger like Init and mirrors every entry to the
// serial console at portName, the device's debug UART.
func InitWithSerial(debug bool, portName string, baudrate int) error {
	if baudrate <= 0 {
		baudrate = DefaultSerialBaudrate
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudrate})
	if err != nil {
		return err
	}

	config := buildConfig(debug)
	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		_ = port.Close()
		return err
	}

	consoleEnc := zapcore.NewConsoleEncoder(config.EncoderConfig)
	serialCore := zapcore.NewCore(consoleEnc, zapcore.AddSync(port), config.Level)

	zapLog = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, serialCore)
	}))

	if serialConsole != nil {
		_ = serialConsole.Close()
	}
	serialConsole = port

	return nil
}

// CloseSerial closes the serial console if one was opened
func CloseSerial() {
	if serialConsole == nil {
		return
	}

	_ = serialConsole.Close()
	serialConsole = nil
}
