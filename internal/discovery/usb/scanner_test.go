package usb

import (
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexID(t *testing.T) {
	id, err := ParseHexID("0x04F9")
	require.NoError(t, err)
	assert.Equal(t, gousb.ID(0x04F9), id)

	id, err = ParseHexID("1c7e")
	require.NoError(t, err)
	assert.Equal(t, gousb.ID(0x1C7E), id)

	_, err = ParseHexID("zz")
	assert.Error(t, err)
}

func TestParseVendorIDs_SkipsInvalid(t *testing.T) {
	assert.Equal(t, []gousb.ID{0x04F9}, ParseVendorIDs([]string{"0x04F9", "nope"}))
}

func TestIsPrinterClass(t *testing.T) {
	assert.True(t, IsPrinterClass(&gousb.DeviceDesc{Class: gousb.ClassPrinter}))

	perInterface := &gousb.DeviceDesc{
		Class: gousb.ClassPerInterface,
		Configs: map[int]gousb.ConfigDesc{
			1: {Interfaces: []gousb.InterfaceDesc{{
				AltSettings: []gousb.InterfaceSetting{{Class: gousb.ClassPrinter}},
			}}},
		},
	}
	assert.True(t, IsPrinterClass(perInterface))
	assert.False(t, IsPrinterClass(&gousb.DeviceDesc{Class: gousb.ClassHID}))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "IDP SMART-31S", DisplayName("IDP", "SMART-31S", 1, 2))
	assert.Equal(t, "SMART-31S", DisplayName("", "SMART-31S", 1, 2))
	assert.Equal(t, "IDP-0002", DisplayName("IDP", "", 1, 2))
	assert.Equal(t, "USB-0001:0002", DisplayName("", "", 1, 2))
}
