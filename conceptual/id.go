package conceptual

import "strings"

// BSSID is the hardware identifier of an access point radio.
// Use NewBSSID to get the canonical upper-case, colon-separated form.
type BSSID string

// NewBSSID normalizes s: surrounding whitespace is trimmed,
// dashes become colons, and hex digits are upper-cased.
func NewBSSID(s string) BSSID {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", ":")
	return BSSID(strings.ToUpper(s))
}

func (b BSSID) String() string {
	return string(b)
}

func (b BSSID) IsEmpty() bool {
	return b == ""
}

// TopicSafe returns the BSSID with colons removed,
// for use in MQTT topics, file names and the like.
func (b BSSID) TopicSafe() string {
	return strings.ReplaceAll(string(b), ":", "")
}
