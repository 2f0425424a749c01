package testdata

// Records_Mixed is a small capture in the accepted record shapes:
// observations with and without an explicit type, alias attribute names,
// a numeric timestamp, a GPS fix, a duplicate, and two invalid records.
var Records_Mixed = `{"type":"fix","time":"2024-12-23T15:31:55Z","lat":44.98896,"lon":-93.25549}
{"bssid":"6c:70:9f:de:59:89","time":"2024-12-23T15:31:56Z","lat":44.98897,"lon":-93.25550,"rssi":-61}
{"macaddr":"6C-70-9F-DE-59-8A","gpstime":1734967917.5,"latitude":44.98898,"longitude":-93.25551,"signal":-67}
{"type":"obs","bssid":"6c:70:9f:de:59:89","timestamp":"2024-12-23T15:31:58Z","lat":44.98899,"lng":-93.25552,"signal_dbm":-58}
{"bssid":"6c:70:9f:de:59:89","time":"2024-12-23T15:31:56Z","lat":44.98897,"lon":-93.25550,"rssi":-61}
{"bssid":"6c:70:9f:de:59:89","time":"2024-12-23T15:31:59Z","lat":0,"lon":0,"rssi":-60}
{"bssid":"","time":"2024-12-23T15:32:00Z","lat":44.98899,"lon":-93.25552,"rssi":-60}
{"time":"2024-12-23T15:32:01Z","lat":44.98900,"lon":-93.25553}
`
