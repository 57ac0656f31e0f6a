package motion

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// MPU6050 register map (subset).
const (
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelXOutH  = 0x3B
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75

	whoAmIValue = 0x68

	dlpf21Hz     = 0x04
	gyroFS500    = 0x08 // ±500 °/s
	accelFS4G    = 0x08 // ±4 g
	clockPLLGyro = 0x01

	accelLSBPerG    = 8192.0
	gyroLSBPerDegS  = 65.5
	standardGravity = 9.80665
)

// MPU6050 reads an InvenSense MPU6050 over I2C.
type MPU6050 struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenMPU6050 opens the bus, checks that the device acknowledges and
// configures ranges: accelerometer ±4 g, gyro ±500 °/s, 21 Hz bandwidth.
// A missing or misconfigured device yields an error wrapping ErrNoDevice.
func OpenMPU6050(cfg BusConfig) (*MPU6050, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Bus, err)
	}
	m := &MPU6050{bus: bus, dev: &i2c.Dev{Addr: cfg.Address, Bus: bus}}

	id, err := m.readReg(regWhoAmI)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("%w: read WHO_AM_I at 0x%02X: %v", ErrNoDevice, cfg.Address, err)
	}
	if id != whoAmIValue {
		bus.Close()
		return nil, fmt.Errorf("%w: WHO_AM_I=0x%02X, want 0x%02X", ErrNoDevice, id, whoAmIValue)
	}

	setup := [][2]byte{
		{regPwrMgmt1, clockPLLGyro},
		{regConfig, dlpf21Hz},
		{regGyroConfig, gyroFS500},
		{regAccelConfig, accelFS4G},
	}
	for _, w := range setup {
		if err := m.dev.Tx(w[:], nil); err != nil {
			bus.Close()
			return nil, fmt.Errorf("write reg 0x%02X: %w", w[0], err)
		}
	}

	log.Printf("motion: mpu6050 ready on bus %s addr 0x%02X (sda=%d scl=%d)", cfg.Bus, cfg.Address, cfg.SDAPin, cfg.SCLPin)
	return m, nil
}

// ReadRaw burst-reads accelerometer, temperature and gyro registers and
// converts them to m/s^2 and rad/s.
func (m *MPU6050) ReadRaw() (Sample, error) {
	var buf [14]byte
	if err := m.dev.Tx([]byte{regAccelXOutH}, buf[:]); err != nil {
		return Sample{}, fmt.Errorf("read sensor registers: %w", err)
	}
	return decodeMPU6050(buf), nil
}

// Close releases the I2C bus.
func (m *MPU6050) Close() error {
	if m.bus != nil {
		return m.bus.Close()
	}
	return nil
}

func (m *MPU6050) readReg(reg byte) (byte, error) {
	var b [1]byte
	if err := m.dev.Tx([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// decodeMPU6050 converts a 14-byte burst starting at ACCEL_XOUT_H.
// Bytes 6..7 hold the temperature and are skipped.
func decodeMPU6050(buf [14]byte) Sample {
	word := func(i int) float64 {
		return float64(int16(binary.BigEndian.Uint16(buf[i:])))
	}
	const degToRad = math.Pi / 180
	return Sample{
		AccelX: word(0) / accelLSBPerG * standardGravity,
		AccelY: word(2) / accelLSBPerG * standardGravity,
		AccelZ: word(4) / accelLSBPerG * standardGravity,
		GyroX:  word(8) / gyroLSBPerDegS * degToRad,
		GyroY:  word(10) / gyroLSBPerDegS * degToRad,
		GyroZ:  word(12) / gyroLSBPerDegS * degToRad,
	}
}
