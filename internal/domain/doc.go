// Package domain models the data exchanged between a regional monitoring
// centre and its local monitoring stations.
//
// # Alerts
//
// A station raises an Alert when a water-level sensor crosses its warning
// threshold. An alert is identified by the compound key
// (station, zone, sensor): a station covers several zones, and each zone
// contains several sensors. Repeated reports for the same key replace the
// previous reading; the key is identity, time and measurement are payload.
//
// Zone and sensor identifiers are bounded-length text, matching the durable
// schema: zones are at most 26 characters (district names), sensors at most
// 4 (numeric tags assigned by the station).
//
// # Ordering
//
// Wherever alerts are listed they are ordered ascending by report time.
// The oldest alert sorts first because it has been unresolved the longest,
// which makes it the most urgent.
//
// # Station registrations
//
// A StationRegistration records that a named station connected to a named
// centre. Registrations are persisted so the set of known stations survives
// coordinator restarts; live alert state belongs to the in-memory registry.
package domain
