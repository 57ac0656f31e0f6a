package motion

import (
	"math"
	"testing"
)

func TestDecodeMPU6050(t *testing.T) {
	// az = +8192 (1 g), gx = +655 (10 °/s), gz = -655.
	buf := [14]byte{
		0x00, 0x00, // ax
		0x00, 0x00, // ay
		0x20, 0x00, // az
		0x12, 0x34, // temp, ignored
		0x02, 0x8F, // gx
		0x00, 0x00, // gy
		0xFD, 0x71, // gz
	}
	s := decodeMPU6050(buf)

	if math.Abs(s[AccelZ]-9.80665) > 1e-9 {
		t.Errorf("AccelZ: got %v, want 9.80665", s[AccelZ])
	}
	wantRate := 10 * math.Pi / 180
	if math.Abs(s[GyroX]-wantRate) > 1e-9 {
		t.Errorf("GyroX: got %v, want %v", s[GyroX], wantRate)
	}
	if math.Abs(s[GyroZ]+wantRate) > 1e-9 {
		t.Errorf("GyroZ: got %v, want %v", s[GyroZ], -wantRate)
	}
	if s[AccelX] != 0 || s[AccelY] != 0 || s[GyroY] != 0 {
		t.Errorf("expected zero channels, got %v", s)
	}
}
