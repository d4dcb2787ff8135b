package domain

import (
	"errors"
	"fmt"
	"sort"
)

// Identifier bounds from the durable schema.
const (
	MaxZoneLen   = 26
	MaxSensorLen = 4
)

// AlertKey is the compound identity (station, zone, sensor) of an alert.
// Every holder of alerts keeps at most one entry per key.
type AlertKey struct {
	StationID string `json:"station_id"`
	Zone      string `json:"zone"`
	SensorID  string `json:"sensor_id"`
}

// Validate reports whether the key is complete and within identifier bounds.
func (k AlertKey) Validate() error {
	if k.StationID == "" {
		return errors.New("station id is required")
	}
	if k.Zone == "" {
		return errors.New("zone is required")
	}
	if len(k.Zone) > MaxZoneLen {
		return fmt.Errorf("zone %q exceeds %d characters", k.Zone, MaxZoneLen)
	}
	if k.SensorID == "" {
		return errors.New("sensor id is required")
	}
	if len(k.SensorID) > MaxSensorLen {
		return fmt.Errorf("sensor id %q exceeds %d characters", k.SensorID, MaxSensorLen)
	}
	return nil
}

func (k AlertKey) String() string {
	return k.StationID + "/" + k.Zone + "/" + k.SensorID
}

// Alert is one active water-level warning. The embedded key is identity;
// Time (epoch seconds, as reported by the station) and Measurement are the
// mutable payload replaced by later reports for the same key.
type Alert struct {
	AlertKey
	Time        int64 `json:"time"`
	Measurement int   `json:"measurement"`
}

// Validate checks the alert's identity fields.
func (a Alert) Validate() error {
	return a.AlertKey.Validate()
}

// SortByTime orders alerts ascending by report time, oldest first.
// Ties keep their existing relative order.
func SortByTime(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Time < alerts[j].Time
	})
}

// StationRegistration records that a station connected to a centre.
// Unique per (centre, station) pair in the durable mirror.
type StationRegistration struct {
	CenterName  string `json:"center_name"`
	StationName string `json:"station_name"`
}
