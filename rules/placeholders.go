package rules

// DefaultPlaceholders is the allow-list of locations for which a
// syntactically valid placeholder is unambiguous. Inserted values are
// structurally valid, not semantically meaningful; anything outside this
// list is left for human follow-up.
func DefaultPlaceholders() map[string]string {
	return map[string]string{
		// SCH-20 (Entered By Person) is mandatory in SIU schedule
		// messages; a minimal XCN with placeholder identifiers satisfies
		// the usage constraint.
		"SCH-20": "<SCH.20><XCN.1>UNKNOWN</XCN.1><XCN.2><FN.1>UNKNOWN</FN.1></XCN.2><XCN.3>STAFF</XCN.3></SCH.20>",

		// SCH-6.3 (name of coding system) is required when SCH-6 is
		// present; the appointment reason table is the only sensible
		// coding system there.
		"SCH-6.3": "HL70276",

		// SCH-25.3 pairs with the filler status code table.
		"SCH-25.3": "HL70278",
	}
}
