// Package socketcanv2 is a raw SocketCAN driver with kernel side acceptance
// filters. The driver is only available on linux.
package socketcanv2
