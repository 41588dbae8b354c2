package mem

import (
	"syscall"

	"github.com/umbra-sim/umbra/internal/simlog"
)

var protFormatter = &simlog.BitflagFormatter{
	Flags: []simlog.BitflagValue{
		{Value: syscall.PROT_READ, Name: "PROT_READ"},
		{Value: syscall.PROT_WRITE, Name: "PROT_WRITE"},
		{Value: syscall.PROT_EXEC, Name: "PROT_EXEC"},
	},
}

var mapFormatter = &simlog.BitflagFormatter{
	Flags: []simlog.BitflagValue{
		{Value: syscall.MAP_SHARED, Name: "MAP_SHARED"},
		{Value: syscall.MAP_PRIVATE, Name: "MAP_PRIVATE"},
		{Value: syscall.MAP_FIXED, Name: "MAP_FIXED"},
		{Value: syscall.MAP_ANONYMOUS, Name: "MAP_ANONYMOUS"},
	},
}
