package can

import (
	"fmt"
	"sort"

	cansniffer "github.com/samsamfire/gocansniffer"
)

type NewInterfaceFunc func(channel string) (cansniffer.Bus, error)

var AvailableInterfaces = make(map[string]NewInterfaceFunc)
var ImplementedInterfaces = []string{
	"socketcan",
	"socketcanv2",
	"virtual",
}

// Register a new CAN bus interface type
// This should be called inside an init() function of plugin
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	AvailableInterfaces[interfaceType] = newInterface
}

// Create a new CAN bus with given interface, the driver package must be
// imported for its interface to be registered.
func NewBus(canInterface string, channel string) (cansniffer.Bus, error) {
	createInterface, ok := AvailableInterfaces[canInterface]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported interface : %v", cansniffer.ErrInvalidParam, canInterface)
	}
	return createInterface(channel)
}

// Registered returns the names of the registered interfaces, sorted
func Registered() []string {
	names := make([]string, 0, len(AvailableInterfaces))
	for name := range AvailableInterfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
