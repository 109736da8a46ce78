package happybase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClusterTimeout is returned when an explicit cluster and a timeout
	// are supplied together. The timeout only applies to auto-discovery.
	ErrClusterTimeout = errors.New("happybase: timeout cannot be used with an existing cluster")
	// ErrReleased is returned by operations on a connection that gave up
	// its cluster handle.
	ErrReleased = errors.New("happybase: connection released its cluster")
	// ErrUnsupported is returned by table administration calls that the
	// wrapped storage service does not expose.
	ErrUnsupported = errors.New("happybase: operation is not supported by the storage service")
)

// UnknownParamError is returned when construction receives parameters
// outside the recognized set.
type UnknownParamError struct {
	Names []string
}

func (e *UnknownParamError) Error() string {
	return "happybase: unknown parameters: " + strings.Join(e.Names, ", ")
}

// ParamTypeError is returned when a construction parameter has the wrong
// type.
type ParamTypeError struct {
	Name  string
	Want  string
	Value interface{}
}

func (e *ParamTypeError) Error() string {
	return fmt.Sprintf("happybase: parameter %q must be a %s, got %T", e.Name, e.Want, e.Value)
}

// ClusterSearchError is returned when cluster auto-discovery does not find
// exactly one healthy cluster.
type ClusterSearchError struct {
	// Found is the number of clusters discovered.
	Found int
	// FailedZones lists zones that could not be queried.
	FailedZones []string
}

func (e *ClusterSearchError) Error() string {
	if len(e.FailedZones) != 0 {
		return fmt.Sprintf("happybase: %d zone(s) failed during cluster discovery: %s",
			len(e.FailedZones), strings.Join(e.FailedZones, ", "))
	}
	return fmt.Sprintf("happybase: expected exactly one cluster, found %d", e.Found)
}
