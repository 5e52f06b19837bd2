package vfs

import (
	"fmt"
	"strings"
)

// FSKind names a filesystem driver.
type FSKind int

const (
	// KindAuto probes the registered drivers in order.
	KindAuto FSKind = iota
	KindFAT32
	KindTest
)

var kindNames = map[FSKind]string{
	KindAuto:  "auto",
	KindFAT32: "fat32",
	KindTest:  "test",
}

func (k FSKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FSKind(%d)", int(k))
}

// ParseFSKind is the inverse of FSKind.String. It ignores case.
func ParseFSKind(s string) (FSKind, error) {
	for kind, name := range kindNames {
		if strings.EqualFold(s, name) {
			return kind, nil
		}
	}
	return KindAuto, fmt.Errorf("unknown filesystem kind `%s`", s)
}

// Connector is the controller type a disk is attached to.
type Connector int

const (
	ConnectorAHCI Connector = iota
	ConnectorDummy
)

var connectorNames = map[Connector]string{
	ConnectorAHCI:  "ahci",
	ConnectorDummy: "dummy",
}

func (c Connector) String() string {
	if name, ok := connectorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Connector(%d)", int(c))
}

// ParseConnector is the inverse of Connector.String. It ignores case.
func ParseConnector(s string) (Connector, error) {
	for connector, name := range connectorNames {
		if strings.EqualFold(s, name) {
			return connector, nil
		}
	}
	return ConnectorAHCI, fmt.Errorf("unknown connector `%s`", s)
}
