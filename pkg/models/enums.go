package models

import "strings"

// Urgency ranks findings, devices and impression items.
type Urgency string

const (
	UrgencyCritical      Urgency = "CRITICAL"
	UrgencyUrgent        Urgency = "URGENT"
	UrgencyRoutine       Urgency = "ROUTINE"
	UrgencyInformational Urgency = "INFORMATIONAL"
)

// Rank returns the severity of u; higher is more severe. Unknown values rank 0.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 4
	case UrgencyUrgent:
		return 3
	case UrgencyRoutine:
		return 2
	case UrgencyInformational:
		return 1
	}
	return 0
}

// ParseUrgency matches s case-insensitively against the known urgencies.
// IMMEDIATE is accepted as CRITICAL, mirroring ParsePriority.
func ParseUrgency(s string) (Urgency, bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == string(PriorityImmediate) {
		return UrgencyCritical, true
	}
	u := Urgency(v)
	if u.Rank() == 0 {
		return "", false
	}
	return u, true
}

// Priority ranks recommendations.
type Priority string

const (
	PriorityImmediate Priority = "IMMEDIATE"
	PriorityUrgent    Priority = "URGENT"
	PriorityRoutine   Priority = "ROUTINE"
)

// Rank returns the severity of p; higher is more severe. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityImmediate:
		return 3
	case PriorityUrgent:
		return 2
	case PriorityRoutine:
		return 1
	}
	return 0
}

// ParsePriority matches s case-insensitively. CRITICAL is accepted as
// IMMEDIATE since both sit at the top of the severity scale.
func ParsePriority(s string) (Priority, bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == string(UrgencyCritical) {
		return PriorityImmediate, true
	}
	p := Priority(v)
	if p.Rank() == 0 {
		return "", false
	}
	return p, true
}

// Confidence is the model's stated certainty.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceLow      Confidence = "low"
)

// Rank returns 3 for high down to 1 for low; unknown values rank 0.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceModerate:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// ParseConfidence matches s case-insensitively.
func ParseConfidence(s string) (Confidence, bool) {
	c := Confidence(strings.ToLower(strings.TrimSpace(s)))
	if c.Rank() == 0 {
		return "", false
	}
	return c, true
}

// System is the anatomical system a finding belongs to.
type System string

const (
	SystemLungs       System = "lungs"
	SystemPleura      System = "pleura"
	SystemHeart       System = "heart"
	SystemMediastinum System = "mediastinum"
	SystemBones       System = "bones"
	SystemOther       System = "other"
)

var systems = map[System]bool{
	SystemLungs: true, SystemPleura: true, SystemHeart: true,
	SystemMediastinum: true, SystemBones: true, SystemOther: true,
}

// ParseSystem matches s case-insensitively.
func ParseSystem(s string) (System, bool) {
	v := System(strings.ToLower(strings.TrimSpace(s)))
	if !systems[v] {
		return "", false
	}
	return v, true
}

// DeviceType identifies a line or tube.
type DeviceType string

const (
	DeviceETT   DeviceType = "ETT"
	DeviceNGT   DeviceType = "NGT"
	DeviceCVC   DeviceType = "CVC"
	DeviceOther DeviceType = "other"
)

var deviceTypeAliases = map[string]DeviceType{
	"ett":                     DeviceETT,
	"endotracheal tube":       DeviceETT,
	"endotracheal_tube":       DeviceETT,
	"ngt":                     DeviceNGT,
	"nasogastric tube":        DeviceNGT,
	"nasogastric_tube":        DeviceNGT,
	"cvc":                     DeviceCVC,
	"central venous catheter": DeviceCVC,
	"central_venous_catheter": DeviceCVC,
	"other":                   DeviceOther,
}

// ParseDeviceType accepts the short codes and the spelled-out names.
func ParseDeviceType(s string) (DeviceType, bool) {
	t, ok := deviceTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Label returns the human-readable device name.
func (t DeviceType) Label() string {
	switch t {
	case DeviceETT:
		return "Endotracheal Tube"
	case DeviceNGT:
		return "Nasogastric Tube"
	case DeviceCVC:
		return "Central Venous Catheter"
	}
	return "Other Device"
}

// DeviceStatus describes device placement.
type DeviceStatus string

const (
	DeviceAppropriate   DeviceStatus = "appropriate"
	DeviceMalpositioned DeviceStatus = "malpositioned"
	DeviceUncertain     DeviceStatus = "uncertain"
	DeviceNotPresent    DeviceStatus = "not_present"
)

// ParseDeviceStatus matches s case-insensitively; "not-present" and
// "not present" are folded into not_present.
func ParseDeviceStatus(s string) (DeviceStatus, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "_", " ", "_").Replace(v)
	switch DeviceStatus(v) {
	case DeviceAppropriate, DeviceMalpositioned, DeviceUncertain, DeviceNotPresent:
		return DeviceStatus(v), true
	}
	return "", false
}
