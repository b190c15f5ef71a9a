package hl7corrector

// MessageType identifies a supported HL7 v2 interchange message type.
type MessageType string

// Supported message types.
const (
	// ORUR01 is an unsolicited observation result.
	ORUR01 MessageType = "ORU^R01"
	// SIUS12 is an appointment booking notification.
	SIUS12 MessageType = "SIU^S12"
	// REFI12 is a patient referral.
	REFI12 MessageType = "REF^I12"
)

// String returns the message type string.
func (t MessageType) String() string {
	return string(t)
}

// IsValid returns true if this is a supported message type.
func (t MessageType) IsValid() bool {
	switch t {
	case ORUR01, SIUS12, REFI12:
		return true
	default:
		return false
	}
}

// typeConfig holds type-specific configuration.
type typeConfig struct {
	// Root is the message's root element name in v2.xml encoding.
	Root string

	// Description names the trigger event.
	Description string
}

var typeConfigs = map[MessageType]typeConfig{
	ORUR01: {
		Root:        "ORU_R01",
		Description: "Unsolicited observation result",
	},
	SIUS12: {
		Root:        "SIU_S12",
		Description: "Appointment booking notification",
	},
	REFI12: {
		Root:        "REF_I12",
		Description: "Patient referral",
	},
}

// Root returns the message's root element name, e.g. SIU_S12.
func (t MessageType) Root() string {
	return typeConfigs[t].Root
}

// Description names the message's trigger event.
func (t MessageType) Description() string {
	return typeConfigs[t].Description
}

// MessageTypes lists the supported message types.
func MessageTypes() []MessageType {
	return []MessageType{ORUR01, SIUS12, REFI12}
}
