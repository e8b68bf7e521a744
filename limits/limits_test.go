package limits

import (
	"errors"
	"strings"
	"testing"
)

// TestMaxNameLengthFitsMTU verifies that an OK reply carrying the longest
// allowed name still fits into one MTU.
func TestMaxNameLengthFitsMTU(t *testing.T) {
	if MinInvitationSize+MaxNameLength+1 != MTU {
		t.Errorf("invitation with max name = %d bytes, want %d", MinInvitationSize+MaxNameLength+1, MTU)
	}
}

func TestValidateDatagram(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{"empty", 0, ErrPacketEmpty},
		{"single byte", 1, nil},
		{"clock sync", ClockSyncSize, nil},
		{"exactly MTU", MTU, nil},
		{"one over MTU", MTU + 1, ErrPacketTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data []byte
			if tt.size > 0 {
				data = make([]byte, tt.size)
			}
			err := ValidateDatagram(data)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDatagram() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDatagram() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"simple", "rtpmidi", nil},
		{"unicode", "Estudio Música", nil},
		{"empty", "", ErrNameEmpty},
		{"max length", strings.Repeat("a", MaxNameLength), nil},
		{"too long", strings.Repeat("a", MaxNameLength+1), ErrNameTooLong},
		{"bad encoding", string([]byte{0xff, 0xfe}), ErrNameEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateName() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateName() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
